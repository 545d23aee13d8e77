package worker

import (
	"context"
	"errors"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"huddle/internal/repository"
	"huddle/internal/service"
	"huddle/internal/tasks"
)

// WorkerServer wraps the asynq server lifecycle.
type WorkerServer struct {
	server      *asynq.Server
	log         *logrus.Entry
	stateRepo   repository.StateRepository
	roomService *service.RoomService
}

// NewWorkerServer creates a worker server with handlers not yet registered;
// registration happens in Start.
func NewWorkerServer(redisOpt asynq.RedisClientOpt, stateRepo repository.StateRepository, roomService *service.RoomService, logger *logrus.Logger) *WorkerServer {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for WorkerServer")
	}
	if roomService == nil {
		panic("RoomService cannot be nil for WorkerServer")
	}
	logEntry := logger.WithField("component", "worker_server")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				taskID := ""
				if rw := task.ResultWriter(); rw != nil {
					taskID = rw.TaskID()
				}
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_id":   taskID,
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &WorkerServer{
		server:      server,
		log:         logEntry,
		stateRepo:   stateRepo,
		roomService: roomService,
	}
}

// Start runs the worker server. Call it from its own goroutine.
func (ws *WorkerServer) Start() {
	mux := asynq.NewServeMux()

	reapHandler := NewRoomReapHandler(ws.stateRepo, ws.roomService)
	mux.HandleFunc(tasks.TypeRoomReap, reapHandler.ProcessTask)

	ws.log.Info("Worker server starting...")
	if err := ws.server.Run(mux); err != nil {
		if !errors.Is(err, asynq.ErrServerClosed) {
			ws.log.Fatalf("Could not run worker server: %v", err)
		} else {
			ws.log.Info("Worker server stopped.")
		}
	}
}

// Shutdown gracefully stops the worker server.
func (ws *WorkerServer) Shutdown() {
	ws.log.Info("Shutting down worker server...")
	ws.server.Shutdown()
	ws.log.Info("Worker server shut down complete.")
}
