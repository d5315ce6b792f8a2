package fallback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hibiken/asynq"
)

const taskTypeInvoke = "fallback:invoke"

// taskPayload is the asynq task body: the page image path (for Donut) and
// the page's high-confidence text plus context (for the LLM normalizer).
type taskPayload struct {
	TaskID    string     `json:"task_id"`
	ImagePath string     `json:"image_path"`
	PageText  string     `json:"page_text"`
	Context   LLMContext `json:"context"`
}

// queue submits fallback invocations through an asynq-backed retry queue
// with exponential backoff, and collects each task's outcome via an
// in-process result store keyed by task ID. The synchronous Donut/LLM calls
// live in the task handler; the queue supplies retry and the wall-clock
// timeout budget around them.
type queue struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux

	results sync.Map // map[string]chan FallbackResult

	donut *DonutClient
	llm   *LLMClient

	maxRetries int
	timeout    time.Duration
}

func newQueue(redisAddr string, maxRetries int, timeout time.Duration, donut *DonutClient, llm *LLMClient) (*queue, error) {
	if redisAddr == "" {
		return nil, fmt.Errorf("fallback: redis address required for retry queue")
	}

	redisOpt := asynq.RedisClientOpt{Addr: redisAddr}

	q := &queue{
		client:     asynq.NewClient(redisOpt),
		maxRetries: maxRetries,
		timeout:    timeout,
		donut:      donut,
		llm:        llm,
	}

	q.server = asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 4,
		RetryDelayFunc: func(n int, err error, task *asynq.Task) time.Duration {
			delay := time.Duration(2*(1<<uint(n))) * time.Second
			if delay > 30*time.Second {
				delay = 30 * time.Second
			}
			return delay
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			slog.Error("fallback task failed", "type", task.Type(), "error", err)
		}),
	})

	q.mux = asynq.NewServeMux()
	q.mux.HandleFunc(taskTypeInvoke, q.handle)

	return q, nil
}

// run starts the asynq server processing loop in the background.
func (q *queue) run() {
	go func() {
		if err := q.server.Run(q.mux); err != nil {
			slog.Error("fallback queue server stopped", "error", err)
		}
	}()
}

func (q *queue) shutdown() {
	q.server.Shutdown()
	q.client.Close()
}

// submit enqueues one invocation and blocks until the handler publishes a
// result or the timeout budget elapses, whichever comes first. Exceeding
// the budget is reported as unavailable, not as an error.
func (q *queue) submit(ctx context.Context, p taskPayload) (FallbackResult, bool) {
	body, err := json.Marshal(p)
	if err != nil {
		return FallbackResult{}, false
	}

	ch := make(chan FallbackResult, 1)
	q.results.Store(p.TaskID, ch)
	defer q.results.Delete(p.TaskID)

	task := asynq.NewTask(taskTypeInvoke, body, asynq.MaxRetry(q.maxRetries), asynq.Timeout(q.timeout))
	if _, err := q.client.EnqueueContext(ctx, task); err != nil {
		return FallbackResult{}, false
	}

	select {
	case result := <-ch:
		return result, true
	case <-time.After(q.timeout):
		return FallbackResult{}, false
	case <-ctx.Done():
		return FallbackResult{}, false
	}
}

// handle is the asynq task handler: it invokes Donut, falls back to the LLM
// normalizer when Donut is unavailable, and publishes the result to the
// waiting submit call. When neither produces a result it returns an error,
// so asynq retries the task with backoff.
func (q *queue) handle(ctx context.Context, task *asynq.Task) error {
	var p taskPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		return fmt.Errorf("fallback: bad task payload: %w", err)
	}

	result, ok := invokeCollaborators(ctx, q.donut, q.llm, p)
	if !ok {
		return fmt.Errorf("fallback: no collaborator produced a result for task %s", p.TaskID)
	}

	if v, found := q.results.Load(p.TaskID); found {
		v.(chan FallbackResult) <- result
	}
	return nil
}
