package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/athebyme/gomarket-platform/pkg/interfaces"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/domain/models"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/jobs"
	"github.com/athebyme/gomarket-platform/services/feed-service/internal/utils"
)

// CommandDispatcher передает сборки воркеру из процесса api.
// Задача сохраняется в общем хранилище в состоянии queued, воркер принимает ее по команде rebuild.
type CommandDispatcher struct {
	store  jobs.Store
	bus    interfaces.MessagingPort
	topic  string
	logger interfaces.LoggerPort
}

// NewCommandDispatcher создает диспетчер команд
func NewCommandDispatcher(store jobs.Store, bus interfaces.MessagingPort, topic string, logger interfaces.LoggerPort) *CommandDispatcher {
	return &CommandDispatcher{store: store, bus: bus, topic: topic, logger: logger}
}

// ScheduleBuild записывает задачу и публикует команду rebuild
func (d *CommandDispatcher) ScheduleBuild(ctx context.Context, tenantID string) (*jobs.Job, error) {
	job, err := jobs.NewJob(jobs.BuildQueue, tenantID, models.BuildPayload{TenantID: tenantID})
	if err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := d.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to save job: %w", err)
	}

	cmd := models.FeedCommand{CommandType: models.RebuildCommand, TenantID: tenantID, JobID: job.ID}
	if err := d.send(ctx, cmd); err != nil {
		// задача без команды никогда не будет принята воркером
		finished := time.Now().UTC()
		job.State = jobs.StateFailed
		job.Error = err.Error()
		job.FinishedAt = &finished
		if saveErr := d.store.Save(context.WithoutCancel(ctx), job); saveErr != nil {
			d.logger.ErrorWithContext(ctx, "Не удалось пометить задачу как failed",
				interfaces.Field("job_id", job.ID),
				interfaces.ErrField(saveErr),
			)
		}
		return nil, err
	}
	return job, nil
}

func (d *CommandDispatcher) send(ctx context.Context, cmd models.FeedCommand) error {
	raw, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}
	if cmd.TenantID != "" {
		err = d.bus.PublishForTenant(ctx, d.topic, raw, cmd.TenantID)
	} else {
		err = d.bus.Publish(ctx, d.topic, raw)
	}
	if err != nil {
		return fmt.Errorf("failed to publish %s command: %w", cmd.CommandType, err)
	}
	return nil
}

// JobAcceptor принимает в очередь задачу, сохраненную другим процессом
type JobAcceptor interface {
	Accept(ctx context.Context, jobID string) error
}

// Sweeper обход арендаторов с флагом пересборки
type Sweeper interface {
	SweepDirtyTenants(ctx context.Context) ([]*jobs.Job, error)
}

// CommandHandler обрабатывает команды фида в процессе воркера.
// Команду sweep публикуют внешние планировщики, когда встроенный SweepScheduler выключен.
type CommandHandler struct {
	builds  JobAcceptor
	sweeper Sweeper
	logger  interfaces.LoggerPort
}

// NewCommandHandler создает обработчик команд
func NewCommandHandler(builds JobAcceptor, sweeper Sweeper, logger interfaces.LoggerPort) *CommandHandler {
	return &CommandHandler{builds: builds, sweeper: sweeper, logger: logger}
}

// HandleCommand обработчик сообщений топика команд.
// Некорректные команды подтверждаются и пропускаются, повтор их не исправит.
func (h *CommandHandler) HandleCommand(ctx context.Context, msg *interfaces.Message) error {
	var cmd models.FeedCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		h.logger.WarnWithContext(ctx, "Некорректная команда фида",
			interfaces.Field("message_id", msg.ID),
			interfaces.ErrField(err),
		)
		return nil
	}

	switch cmd.CommandType {
	case models.RebuildCommand:
		ctx = interfaces.WithJobID(interfaces.WithTenantID(ctx, cmd.TenantID), cmd.JobID)
		err := h.builds.Accept(ctx, cmd.JobID)
		if errors.Is(err, utils.ErrJobNotFound) {
			h.logger.WarnWithContext(ctx, "Задача из команды не найдена", interfaces.ErrField(err))
			return nil
		}
		return err
	case models.SweepCommand:
		_, err := h.sweeper.SweepDirtyTenants(ctx)
		if err != nil {
			h.logger.ErrorWithContext(ctx, "Обход устаревших фидов завершился с ошибками", interfaces.ErrField(err))
		}
		return nil
	default:
		h.logger.WarnWithContext(ctx, "Неизвестная команда фида",
			interfaces.Field("command_type", cmd.CommandType),
		)
		return nil
	}
}
