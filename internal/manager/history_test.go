package manager

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aether-ai/mcpregd/internal/domain"
)

func TestHistory_AppendAndList(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	for i := 0; i < 3; i++ {
		h.Append(domain.ToolExecution{ID: fmt.Sprintf("e%d", i), ServerID: "s1", ToolName: "echo"})
	}

	got := h.List("", 0)
	require.Len(t, got, 3)
	require.Equal(t, "e2", got[0].ID, "newest first")
	require.Equal(t, "e0", got[2].ID)
}

func TestHistory_EvictsOldestWhenFull(t *testing.T) {
	t.Parallel()

	h := NewHistory(3)
	for i := 0; i < 5; i++ {
		h.Append(domain.ToolExecution{ID: fmt.Sprintf("e%d", i)})
	}

	require.Equal(t, 3, h.Len())

	got := h.List("", 0)
	require.Len(t, got, 3)
	require.Equal(t, "e4", got[0].ID)
	require.Equal(t, "e2", got[2].ID)
}

func TestHistory_FilterByServer(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	h.Append(domain.ToolExecution{ID: "a", ServerID: "s1"})
	h.Append(domain.ToolExecution{ID: "b", ServerID: "s2"})
	h.Append(domain.ToolExecution{ID: "c", ServerID: "s1"})

	got := h.List("s1", 0)
	require.Len(t, got, 2)
	require.Equal(t, "c", got[0].ID)
	require.Equal(t, "a", got[1].ID)
}

func TestHistory_Limit(t *testing.T) {
	t.Parallel()

	h := NewHistory(10)
	for i := 0; i < 5; i++ {
		h.Append(domain.ToolExecution{ID: fmt.Sprintf("e%d", i)})
	}

	got := h.List("", 2)
	require.Len(t, got, 2)
	require.Equal(t, "e4", got[0].ID)
	require.Equal(t, "e3", got[1].ID)
}

func TestNewHistory_NonPositiveCapacityUsesDefault(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	for i := 0; i < DefaultHistoryCapacity+5; i++ {
		h.Append(domain.ToolExecution{ID: fmt.Sprintf("e%d", i)})
	}
	require.Equal(t, DefaultHistoryCapacity, h.Len())
}
