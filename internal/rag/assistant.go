package rag

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/nikhilbhutani/docsearch/internal/models"
)

const (
	assistantName         = "Document Search Assistant"
	assistantInstructions = "You are a helpful assistant that searches through uploaded documents to answer questions."
	noTextResponse        = "No text response"
)

// AssistantAnswerer answers a query with a throwaway assistant that has
// file_search over one vector store.
type AssistantAnswerer struct {
	client       *openai.Client
	model        string
	pollInterval time.Duration
	log          *slog.Logger
}

func NewAssistantAnswerer(client *openai.Client, model string, pollInterval time.Duration, log *slog.Logger) *AssistantAnswerer {
	if log == nil {
		log = slog.Default()
	}
	if model == "" {
		model = openai.GPT4o
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &AssistantAnswerer{
		client:       client,
		model:        model,
		pollInterval: pollInterval,
		log:          log.With("component", "assistant_answerer"),
	}
}

func (a *AssistantAnswerer) Answer(ctx context.Context, query, storeID string) (*models.SearchResult, error) {
	name := assistantName
	instructions := assistantInstructions
	asst, err := a.client.CreateAssistant(ctx, openai.AssistantRequest{
		Model:        a.model,
		Name:         &name,
		Instructions: &instructions,
		Tools:        []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
		ToolResources: &openai.AssistantToolResource{
			FileSearch: &openai.AssistantToolFileSearch{VectorStoreIDs: []string{storeID}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	defer a.deleteAssistant(ctx, asst.ID)

	thread, err := a.client.CreateThread(ctx, openai.ThreadRequest{
		Messages: []openai.ThreadMessage{{Role: openai.ThreadMessageRoleUser, Content: query}},
	})
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}

	run, err := a.client.CreateRun(ctx, thread.ID, openai.RunRequest{AssistantID: asst.ID})
	if err != nil {
		return nil, fmt.Errorf("create run: %w", err)
	}
	if err := a.waitRun(ctx, thread.ID, run.ID); err != nil {
		return nil, err
	}

	limit := 1
	order := "desc"
	msgs, err := a.client.ListMessage(ctx, thread.ID, &limit, &order, nil, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	return &models.SearchResult{
		Response: firstText(msgs.Messages),
		RunID:    run.ID,
		ThreadID: thread.ID,
	}, nil
}

func (a *AssistantAnswerer) waitRun(ctx context.Context, threadID, runID string) error {
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		run, err := a.client.RetrieveRun(ctx, threadID, runID)
		if err != nil {
			return fmt.Errorf("retrieve run: %w", err)
		}
		switch status := string(run.Status); status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired", "incomplete", "requires_action":
			if run.LastError != nil {
				return fmt.Errorf("run %s %s: %s", runID, status, run.LastError.Message)
			}
			return fmt.Errorf("run %s ended with status %s", runID, status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *AssistantAnswerer) deleteAssistant(ctx context.Context, id string) {
	if _, err := a.client.DeleteAssistant(context.WithoutCancel(ctx), id); err != nil {
		a.log.Warn("assistant.delete_failed", "assistant_id", id, "error", err)
	}
}

func firstText(msgs []openai.Message) string {
	if len(msgs) == 0 || len(msgs[0].Content) == 0 {
		return noTextResponse
	}
	c := msgs[0].Content[0]
	if c.Type != "text" || c.Text == nil {
		return noTextResponse
	}
	return c.Text.Value
}
