package tool

import (
	"context"
	"fmt"
	"strings"

	domainmemory "github.com/zeroclaw/gateway/internal/domain/memory"
	domaintool "github.com/zeroclaw/gateway/internal/domain/tool"
	"go.uber.org/zap"
)

// SemanticRecallDeps wires the vector-backed long-term memory manager used
// by RememberTool/RecallTool. Both the store and embedder are interfaces
// from internal/domain/memory, so a LanceDB+Ollama pair or any future
// replacement plugs in the same way.
type SemanticRecallDeps struct {
	Store    domainmemory.VectorStore
	Embedder domainmemory.EmbeddingProvider
}

// RememberTool embeds and stores a piece of text for later semantic
// recall — the vector-search complement to save_memory's flat fact list.
type RememberTool struct {
	manager *domainmemory.MemoryManager
	logger  *zap.Logger
}

// NewRememberTool builds the remember tool over a shared MemoryManager.
func NewRememberTool(manager *domainmemory.MemoryManager, logger *zap.Logger) *RememberTool {
	return &RememberTool{manager: manager, logger: logger}
}

func (t *RememberTool) Name() string         { return "remember" }
func (t *RememberTool) Kind() domaintool.Kind { return domaintool.KindThink }

func (t *RememberTool) Description() string {
	return "Embed and store a piece of text in vector memory for later semantic search via recall. " +
		"Use for longer passages (decisions, research notes, conversation summaries) that save_memory's " +
		"short fact list isn't a good fit for."
}

func (t *RememberTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"content": map[string]interface{}{
				"type":        "string",
				"description": "the text to remember",
			},
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "optional session scope for later filtered recall",
			},
		},
		"required": []string{"content"},
	}
}

func (t *RememberTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	content, _ := args["content"].(string)
	content = strings.TrimSpace(content)
	if content == "" {
		return &Result{Success: false, Error: "content is required"}, nil
	}

	metadata := map[string]interface{}{}
	if sessionID, ok := args["session_id"].(string); ok && sessionID != "" {
		metadata["session_id"] = sessionID
	}

	entry, err := t.manager.Remember(ctx, content, metadata)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	return &Result{Success: true, Output: fmt.Sprintf("remembered (id=%s)", entry.ID)}, nil
}

// RecallTool runs a semantic search over everything RememberTool has
// stored and returns the closest matches.
type RecallTool struct {
	manager *domainmemory.MemoryManager
	logger  *zap.Logger
}

// NewRecallTool builds the recall tool over the same MemoryManager a
// RememberTool writes into.
func NewRecallTool(manager *domainmemory.MemoryManager, logger *zap.Logger) *RecallTool {
	return &RecallTool{manager: manager, logger: logger}
}

func (t *RecallTool) Name() string         { return "recall" }
func (t *RecallTool) Kind() domaintool.Kind { return domaintool.KindThink }

func (t *RecallTool) Description() string {
	return "Semantically search previously remembered text and return the closest matches. " +
		"Pair with remember to build up retrieval-augmented context across a long task."
}

func (t *RecallTool) Schema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"query": map[string]interface{}{
				"type":        "string",
				"description": "what to search for",
			},
			"session_id": map[string]interface{}{
				"type":        "string",
				"description": "optional: restrict to memories saved under this session",
			},
			"top_k": map[string]interface{}{
				"type":        "integer",
				"description": "maximum matches to return (default 5)",
			},
		},
		"required": []string{"query"},
	}
}

func (t *RecallTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	query, _ := args["query"].(string)
	query = strings.TrimSpace(query)
	if query == "" {
		return &Result{Success: false, Error: "query is required"}, nil
	}

	topK := 5
	if v, ok := args["top_k"].(float64); ok && v > 0 {
		topK = int(v)
	}

	var filter *domainmemory.SearchFilter
	if sessionID, ok := args["session_id"].(string); ok && sessionID != "" {
		filter = &domainmemory.SearchFilter{SessionID: sessionID}
	}

	results, err := t.manager.Recall(ctx, query, topK, filter)
	if err != nil {
		return &Result{Success: false, Error: err.Error()}, nil
	}
	if len(results) == 0 {
		return &Result{Success: true, Output: "no matching memories found"}, nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. (score=%.3f) %s\n", i+1, r.Score, r.Content)
	}
	return &Result{Success: true, Output: b.String()}, nil
}
