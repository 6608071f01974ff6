package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"certistage/config"
	"certistage/models"
	"certistage/render"
	"certistage/repository"
)

// Renderer is the slice of the rendering engine the services use
type Renderer interface {
	RenderPreview(ctx context.Context, req models.RenderRequest) ([]byte, error)
	RenderPDF(ctx context.Context, req models.RenderRequest) (*render.Document, error)
}

// Ensure render.Engine implements Renderer
var _ Renderer = (*render.Engine)(nil)

// planFor returns the plan of the session's event, reading the event when the
// session does not carry it
func planFor(ctx context.Context, events repository.EventStore, sess models.Session) (string, error) {
	if sess.PlanID != "" {
		return sess.PlanID, nil
	}
	ev, err := events.GetEvent(ctx, sess.EventID)
	if err != nil {
		return "", storeError("get event", err)
	}
	return ev.PlanID, nil
}

// storeError keeps AppErrors from the stores and tags anything else as a persistence failure
func storeError(op string, err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.PersistenceFailure(op, err)
}

func sessionLog(sess models.Session) *logrus.Entry {
	fields := logrus.Fields{"event_id": sess.EventID}
	if sess.RequestID != "" {
		fields["request_id"] = sess.RequestID
	}
	if sess.OperatorID != "" {
		fields["operator_id"] = sess.OperatorID
	}
	return config.Log.WithFields(fields)
}
