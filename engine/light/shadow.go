package light

// ShadowMapResolution is the default width and height in texels of each frame's shadow map.
const ShadowMapResolution = 2048

// DefaultShadowFov is the vertical field of view in degrees of a light's shadow projection.
const DefaultShadowFov float32 = 60.0

// DefaultShadowNear is the default near plane of a light's shadow projection.
const DefaultShadowNear float32 = 0.1

// DefaultShadowFar is the default far plane of a light's shadow projection.
const DefaultShadowFar float32 = 800.0

// DefaultShadowDepthBias is the constant rasterizer depth bias of the shadow pass pipeline.
const DefaultShadowDepthBias int32 = 0

// DefaultShadowSlopeScaledDepthBias is the slope-scaled rasterizer depth bias of the shadow pass pipeline.
const DefaultShadowSlopeScaledDepthBias float32 = 1.0
