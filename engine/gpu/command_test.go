package gpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBuffer struct {
	desc BufferDesc
}

func (b *fakeBuffer) Label() string { return b.desc.Label }

func (b *fakeBuffer) Release() {}

func (b *fakeBuffer) Desc() BufferDesc { return b.desc }

func (b *fakeBuffer) Map() ([]byte, error) { return make([]byte, b.desc.Size), nil }

type fakeTexture struct {
	desc TextureDesc
}

func (t *fakeTexture) Label() string { return t.desc.Label }

func (t *fakeTexture) Release() {}

func (t *fakeTexture) Desc() TextureDesc { return t.desc }

func newList(t *testing.T, typ CommandListType) CommandList {
	l, err := NewCommandList(typ, NewCommandAllocator(typ))
	require.NoError(t, err)
	return l
}

func TestCommandList_AllocatorTypeMustMatch(t *testing.T) {
	_, err := NewCommandList(CommandListCopy, NewCommandAllocator(CommandListDirect))
	assert.ErrorIs(t, err, ErrInvalidCommand)
}

func TestCommandList_CopyListRejectsGraphics(t *testing.T) {
	l := newList(t, CommandListCopy)
	l.SetViewport(Viewport{Width: 1, Height: 1})
	assert.ErrorIs(t, l.Close(), ErrInvalidCommand)
}

func TestCommandList_CopyListRejectsShaderStates(t *testing.T) {
	l := newList(t, CommandListCopy)
	buf := &fakeBuffer{desc: BufferDesc{Label: "vb", Size: 64}}
	l.ResourceBarrier(Transition{Resource: buf, Before: StateCopyDest, After: StateVertexAndConstantBuffer})
	assert.ErrorIs(t, l.Close(), ErrInvalidState)
}

func TestCommandList_RecordsInOrder(t *testing.T) {
	assert := assert.New(t)
	l := newList(t, CommandListDirect)
	l.SetViewport(Viewport{Width: 4, Height: 4})
	l.SetGraphicsRoot32BitConstant(0, 7, 0)
	l.DrawIndexedInstanced(3, 1, 6, 0, 0)
	require.NoError(t, l.Close())

	cmds := l.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(OpSetViewport, cmds[0].Op)
	assert.Equal(uint32(7), cmds[1].Value)
	assert.Equal(DrawArgs{IndexCount: 3, InstanceCount: 1, FirstIndex: 6}, cmds[2].Draw)
	assert.True(l.Closed())
}

func TestCommandList_FirstErrorIsSticky(t *testing.T) {
	assert := assert.New(t)
	l := newList(t, CommandListDirect)
	buf := &fakeBuffer{desc: BufferDesc{Label: "cb", Size: 512}}

	l.SetGraphicsRootConstantBufferView(1, buf, 100)
	l.SetViewport(Viewport{Width: 1, Height: 1})
	err := l.Close()
	assert.ErrorIs(err, ErrInvalidCommand)
	assert.Empty(l.Commands())
	assert.False(l.Closed())

	assert.NoError(l.Reset(NewCommandAllocator(CommandListDirect)))
	l.SetGraphicsRootConstantBufferView(1, buf, 256)
	assert.NoError(l.Close())
}

func TestCommandList_CloseTwice(t *testing.T) {
	l := newList(t, CommandListDirect)
	require.NoError(t, l.Close())
	assert.ErrorIs(t, l.Close(), ErrListClosed)
}

func TestCommandList_CopyBounds(t *testing.T) {
	l := newList(t, CommandListCopy)
	src := &fakeBuffer{desc: BufferDesc{Label: "staging", Size: 16}}
	dst := &fakeBuffer{desc: BufferDesc{Label: "vb", Size: 8}}
	l.CopyBufferRegion(dst, 0, src, 0, 16)
	assert.ErrorIs(t, l.Close(), ErrInvalidCommand)
}

func TestCommandList_FootprintPitchAlignment(t *testing.T) {
	l := newList(t, CommandListCopy)
	src := &fakeBuffer{desc: BufferDesc{Label: "staging", Size: 4096}}
	dst := &fakeTexture{desc: TextureDesc{Label: "albedo", Width: 2, Height: 2, Format: FormatRGBA8Unorm}}
	l.CopyTextureRegion(dst, src, TextureFootprint{Width: 2, Height: 2, RowPitch: 8, Format: FormatRGBA8Unorm})
	assert.ErrorIs(t, l.Close(), ErrInvalidCommand)
}
