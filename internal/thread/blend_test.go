package thread

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func idsOf(cs []Comment) []ID {
	out := make([]ID, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}

func assertUnique(t *testing.T, ids []ID) {
	t.Helper()
	seen := make(map[ID]bool, len(ids))
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate identity %s", id)
		seen[id] = true
	}
}

func TestBlender_FillsShortfallFromSecondary(t *testing.T) {
	primary := comments("p", 3)
	fresh := comments("n", 7)
	src := newFakeSource()
	src.primary["story"] = primary
	src.totals["story"] = 10
	src.noMore["story"] = true
	src.chrono["story"] = []Comment{
		primary[1], fresh[0], fresh[1], fresh[2], fresh[3], primary[2], fresh[4], fresh[5], fresh[6],
	}

	b := Blender{Primary: src, Secondary: src}
	out, err := b.run(context.Background(), blendJob{
		req:   FetchRequest{Target: "story", Ordering: Popularity, Page: 1, PageSize: 10},
		state: blendState{},
		seen:  map[ID]struct{}{},
	})

	require.NoError(t, err)
	got := idsOf(out.result.Items)
	require.Len(t, got, 10)
	assert.Equal(t, idsOf(primary), got[:3])
	assert.ElementsMatch(t, idsOf(fresh), got[3:])
	assertUnique(t, got)
	assert.Equal(t, 10, out.result.TotalCount)
	assert.False(t, out.result.HasMore)
	assert.True(t, out.changed)
	assert.True(t, out.secondary)
	assert.Equal(t, 1, out.state.exhaustedAt)
	assert.Equal(t, 2, out.state.cursor)
}

func TestBlender_PrimaryWithMoreIsPassedThrough(t *testing.T) {
	src := newFakeSource()
	src.primary["story"] = comments("p", 25)

	b := Blender{Primary: src, Secondary: src}
	out, err := b.run(context.Background(), blendJob{
		req:  FetchRequest{Target: "story", Page: 1, PageSize: 10},
		seen: map[ID]struct{}{},
	})

	require.NoError(t, err)
	assert.Len(t, out.result.Items, 10)
	assert.True(t, out.result.HasMore)
	assert.False(t, out.changed)
	assert.Equal(t, 1, src.callCount())
}

func TestBlender_BuffersSurplusForNextPage(t *testing.T) {
	src := newFakeSource()
	src.primary["story"] = comments("p", 3)
	src.totals["story"] = 20
	src.noMore["story"] = true
	src.chrono["story"] = comments("n", 15)

	b := Blender{Primary: src, Secondary: src}
	first, err := b.run(context.Background(), blendJob{
		req:  FetchRequest{Target: "story", Page: 1, PageSize: 10},
		seen: map[ID]struct{}{},
	})
	require.NoError(t, err)
	require.Len(t, first.result.Items, 10)
	assert.Len(t, first.state.buffer, 3)
	assert.True(t, first.result.HasMore)

	seen := map[ID]struct{}{}
	for _, c := range first.result.Items {
		seen[c.ID] = struct{}{}
	}
	second, err := b.run(context.Background(), blendJob{
		req:      FetchRequest{Target: "story", Page: 2, PageSize: 10},
		state:    first.state,
		seen:     seen,
		declared: 20,
	})
	require.NoError(t, err)

	got := idsOf(second.result.Items)
	assert.Equal(t, []ID{"n7", "n8", "n9", "n10", "n11", "n12", "n13", "n14"}, got)
	assert.False(t, second.result.HasMore)
	assert.Equal(t, 18, second.result.TotalCount, "both orderings dry: the list ends here")
	assert.Empty(t, second.state.buffer)
}

func TestBlender_GuardBoundsSecondaryPulls(t *testing.T) {
	src := newFakeSource()
	src.primary["story"] = comments("p", 2)
	src.totals["story"] = 10
	src.noMore["story"] = true
	// Every secondary item repeats an identity already seen.
	src.chrono["story"] = append(comments("p", 2), comments("p", 2)...)
	src.chrono["story"] = append(src.chrono["story"], src.chrono["story"]...)

	b := Blender{Primary: src, Secondary: src, Guard: 1}
	out, err := b.run(context.Background(), blendJob{
		req:  FetchRequest{Target: "story", Page: 1, PageSize: 4},
		seen: map[ID]struct{}{},
	})

	require.NoError(t, err)
	assert.Len(t, out.result.Items, 2)
	assert.True(t, out.result.HasMore, "secondary still has pages")
	secondary := 0
	for _, c := range src.calls {
		if c.Ordering == Chronological {
			secondary++
		}
	}
	assert.Equal(t, 1, secondary)
}

func TestBlender_SecondaryErrorLeavesStateUncommitted(t *testing.T) {
	src := newFakeSource()
	src.primary["story"] = comments("p", 3)
	src.totals["story"] = 10
	src.noMore["story"] = true
	src.fail = func(req FetchRequest) error {
		if req.Ordering == Chronological {
			return errNetwork
		}
		return nil
	}

	b := Blender{Primary: src, Secondary: src}
	_, err := b.run(context.Background(), blendJob{
		req:  FetchRequest{Target: "story", Page: 1, PageSize: 10},
		seen: map[ID]struct{}{},
	})

	assert.ErrorIs(t, err, errNetwork)
}
