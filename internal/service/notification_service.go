package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/osei-dev/pastq-api/internal/models"
	"github.com/osei-dev/pastq-api/pkg/jobs"
)

const (
	jobTypeSubmissionFiled    = "submission.filed"
	jobTypeSubmissionReviewed = "submission.reviewed"
)

type reviewEvent struct {
	SubmissionID string                  `json:"submission_id"`
	UploadedBy   string                  `json:"uploaded_by"`
	CourseCode   string                  `json:"course_code"`
	Status       models.SubmissionStatus `json:"status"`
	Reason       string                  `json:"reason,omitempty"`
}

// NotificationService delivers review lifecycle notifications to uploaders
// through a background worker queue. Delivery is log based; a mail or push
// sender can replace the deliver function without touching the queueing.
type NotificationService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewNotificationService builds the service and its backing queue.
func NewNotificationService(cfg jobs.QueueConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &NotificationService{logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start launches the queue workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the workers.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// PublishSubmitted enqueues a notification for a freshly filed submission.
func (s *NotificationService) PublishSubmitted(pq *models.PastQuestion) error {
	return s.enqueue(jobTypeSubmissionFiled, pq, "")
}

// PublishReviewed enqueues a notification for a review decision.
func (s *NotificationService) PublishReviewed(pq *models.PastQuestion) error {
	return s.enqueue(jobTypeSubmissionReviewed, pq, pq.RejectionReason)
}

func (s *NotificationService) enqueue(jobType string, pq *models.PastQuestion, reason string) error {
	if pq == nil {
		return fmt.Errorf("nil submission")
	}
	event := reviewEvent{
		SubmissionID: pq.ID,
		UploadedBy:   pq.UploadedBy,
		CourseCode:   pq.CourseCode,
		Status:       pq.Status,
		Reason:       reason,
	}
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    jobType,
		Payload: event,
	})
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(reviewEvent)
	if !ok {
		return fmt.Errorf("unexpected payload type for job %s", job.ID)
	}
	s.logger.Info("notification delivered",
		zap.String("job_type", job.Type),
		zap.String("submission_id", event.SubmissionID),
		zap.String("recipient", event.UploadedBy),
		zap.String("status", string(event.Status)),
		zap.String("reason", event.Reason),
	)
	return nil
}
