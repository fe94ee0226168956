// Package skill adapts the domain SkillStore into the agent's tool layer,
// exposing create/read/update/delete/list/enable/disable/reload as the
// skill_manage tool.
package skill

import (
	"context"
	"encoding/json"
	"fmt"

	domainskill "github.com/zeroclaw/gateway/internal/domain/skill"
	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
)

// ManageTool exposes the SkillStore CRUD surface to the agent. When
// requireAudit is set, create/update warn once per call that the skill's
// instructions run with the agent's own authority and should be reviewed
// before being enabled for untrusted input.
type ManageTool struct {
	store        *domainskill.Store
	requireAudit bool
}

// NewManageTool builds the skill_manage tool over store.
func NewManageTool(store *domainskill.Store, requireAudit bool) *ManageTool {
	return &ManageTool{store: store, requireAudit: requireAudit}
}

var _ domaintool.Tool = (*ManageTool)(nil)

func (t *ManageTool) Name() string         { return "skill_manage" }
func (t *ManageTool) Kind() domaintool.Kind { return domaintool.KindFetch }
func (t *ManageTool) Description() string {
	return "Manage skills: create, read, update, delete, list, enable, disable, or reload from disk."
}

func (t *ManageTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"action":       map[string]interface{}{"type": "string", "enum": []string{"create", "read", "update", "delete", "list", "enable", "disable", "reload"}},
			"name":         map[string]interface{}{"type": "string"},
			"description":  map[string]interface{}{"type": "string"},
			"version":      map[string]interface{}{"type": "string"},
			"instructions": map[string]interface{}{"type": "string"},
			"tools":        map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
			"prompts":      map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}},
		},
		"required": []string{"action"},
	}
}

func (t *ManageTool) Execute(ctx context.Context, args map[string]interface{}) (*domaintool.Result, error) {
	action, _ := args["action"].(string)
	switch action {
	case "create":
		return t.executeCreate(args)
	case "read":
		return t.executeRead(args)
	case "update":
		return t.executeUpdate(args)
	case "delete":
		return t.executeDelete(args)
	case "list":
		return t.executeList()
	case "enable":
		return t.executeSetEnabled(args, true)
	case "disable":
		return t.executeSetEnabled(args, false)
	case "reload":
		t.store.Rescan()
		return &domaintool.Result{Success: true, Output: "skill store reloaded from disk"}, nil
	default:
		return &domaintool.Result{Success: false, Error: fmt.Sprintf("unknown action: %s", action)}, nil
	}
}

func stringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *ManageTool) executeCreate(args map[string]interface{}) (*domaintool.Result, error) {
	name, _ := args["name"].(string)
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	sk := domainskill.Skill{
		Name:         name,
		Description:  stringArg(args, "description"),
		Version:      stringArg(args, "version"),
		Instructions: stringArg(args, "instructions"),
		Tools:        stringSlice(args, "tools"),
		Prompts:      stringSlice(args, "prompts"),
	}
	created, err := t.store.Create(sk)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out := fmt.Sprintf("skill %q created", created.Name)
	if t.requireAudit {
		out += "; review its instructions before relying on it — a skill runs with the agent's own authority"
	}
	return &domaintool.Result{Success: true, Output: out}, nil
}

func stringArg(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func (t *ManageTool) executeRead(args map[string]interface{}) (*domaintool.Result, error) {
	name := stringArg(args, "name")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	sk, err := t.store.Read(name)
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	data, _ := json.Marshal(sk)
	return &domaintool.Result{Success: true, Output: string(data)}, nil
}

func (t *ManageTool) executeUpdate(args map[string]interface{}) (*domaintool.Result, error) {
	name := stringArg(args, "name")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	updated, err := t.store.Update(name, func(sk *domainskill.Skill) {
		if v, ok := args["description"]; ok {
			sk.Description, _ = v.(string)
		}
		if v, ok := args["version"]; ok {
			sk.Version, _ = v.(string)
		}
		if v, ok := args["instructions"]; ok {
			sk.Instructions, _ = v.(string)
		}
		if _, ok := args["tools"]; ok {
			sk.Tools = stringSlice(args, "tools")
		}
		if _, ok := args["prompts"]; ok {
			sk.Prompts = stringSlice(args, "prompts")
		}
	})
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	out := fmt.Sprintf("skill %q updated", updated.Name)
	if t.requireAudit {
		out += "; review its instructions before relying on it — a skill runs with the agent's own authority"
	}
	return &domaintool.Result{Success: true, Output: out}, nil
}

func (t *ManageTool) executeDelete(args map[string]interface{}) (*domaintool.Result, error) {
	name := stringArg(args, "name")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	if err := t.store.Delete(name); err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	return &domaintool.Result{Success: true, Output: fmt.Sprintf("skill %q deleted", name)}, nil
}

func (t *ManageTool) executeList() (*domaintool.Result, error) {
	skills := t.store.List()
	data, _ := json.Marshal(skills)
	return &domaintool.Result{Success: true, Output: string(data)}, nil
}

func (t *ManageTool) executeSetEnabled(args map[string]interface{}, enabled bool) (*domaintool.Result, error) {
	name := stringArg(args, "name")
	if name == "" {
		return &domaintool.Result{Success: false, Error: "name is required"}, nil
	}
	var err error
	if enabled {
		err = t.store.Enable(name)
	} else {
		err = t.store.Disable(name)
	}
	if err != nil {
		return &domaintool.Result{Success: false, Error: err.Error()}, nil
	}
	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	return &domaintool.Result{Success: true, Output: fmt.Sprintf("skill %q %s", name, verb)}, nil
}
