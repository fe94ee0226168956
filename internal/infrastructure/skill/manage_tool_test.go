package skill

import (
	"context"
	"testing"

	domainskill "github.com/zeroclaw/gateway/internal/domain/skill"
	"go.uber.org/zap"
)

func newTestTool(t *testing.T) *ManageTool {
	t.Helper()
	store := domainskill.New(t.TempDir(), nil, zap.NewNop())
	return NewManageTool(store, false)
}

func TestManageTool_CreateThenRead(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()

	res, err := tool.Execute(ctx, map[string]interface{}{
		"action":      "create",
		"name":        "echo",
		"description": "repeats input",
	})
	if err != nil || !res.Success {
		t.Fatalf("create failed: err=%v res=%+v", err, res)
	}

	res, err = tool.Execute(ctx, map[string]interface{}{"action": "read", "name": "echo"})
	if err != nil || !res.Success {
		t.Fatalf("read failed: err=%v res=%+v", err, res)
	}
}

func TestManageTool_CreateRejectsReservedName(t *testing.T) {
	tool := newTestTool(t)
	res, err := tool.Execute(context.Background(), map[string]interface{}{
		"action": "create",
		"name":   "mcp_manage",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected create to fail for a reserved skill name")
	}
}

func TestManageTool_UpdateThenDelete(t *testing.T) {
	tool := newTestTool(t)
	ctx := context.Background()

	if res, err := tool.Execute(ctx, map[string]interface{}{"action": "create", "name": "notes"}); err != nil || !res.Success {
		t.Fatalf("create failed: err=%v res=%+v", err, res)
	}

	res, err := tool.Execute(ctx, map[string]interface{}{"action": "update", "name": "notes", "description": "meeting notes"})
	if err != nil || !res.Success {
		t.Fatalf("update failed: err=%v res=%+v", err, res)
	}

	res, err = tool.Execute(ctx, map[string]interface{}{"action": "delete", "name": "notes"})
	if err != nil || !res.Success {
		t.Fatalf("delete failed: err=%v res=%+v", err, res)
	}

	res, err = tool.Execute(ctx, map[string]interface{}{"action": "read", "name": "notes"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected read to fail after delete")
	}
}

func TestManageTool_UnknownAction(t *testing.T) {
	tool := newTestTool(t)
	res, err := tool.Execute(context.Background(), map[string]interface{}{"action": "frobnicate"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("expected unknown action to fail")
	}
}
