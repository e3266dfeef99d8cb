package builtin

import (
	"log/slog"
	"net/http"

	"github.com/fluxionhq/fluxion/pkg/events"
	"github.com/fluxionhq/fluxion/pkg/handler"
	"github.com/fluxionhq/fluxion/pkg/models"
)

// Dependencies carries the adapters the built-in handlers are wired with.
type Dependencies struct {
	Bus          *events.Bus
	Logger       *slog.Logger
	HTTPClient   *http.Client
	Email        EmailSender
	Database     DatabaseWriter
	Files        OperationAdapter
	Forms        OperationAdapter
	Push         OperationAdapter
	Mailer       OperationAdapter
	ProviderPool *ProviderPool
}

// RegisterBuiltins registers a handler for every node kind the engine may
// encounter. Kinds without a registered handler fail at dispatch time, so
// the full closed set is covered here.
func RegisterBuiltins(registry *handler.Registry, deps Dependencies) error {
	handlers := map[models.NodeKind]handler.Handler{
		models.NodeKindTrigger:          NewTriggerHandler(),
		models.NodeKindAIProcessor:      NewAIHandler(deps.ProviderPool, deps.Bus),
		models.NodeKindDecision:         NewDecisionHandler(),
		models.NodeKindHumanTask:        NewHumanTaskHandler(deps.Bus),
		models.NodeKindAction:           NewActionHandler(deps.HTTPClient, deps.Email, deps.Database, deps.Logger),
		models.NodeKindTimer:            NewTimerHandler(),
		models.NodeKindFileOperations:   NewFileOperationsHandler(deps.Files),
		models.NodeKindFormBuilder:      NewFormBuilderHandler(deps.Forms, deps.Bus),
		models.NodeKindDataTransform:    NewTransformHandler(),
		models.NodeKindPushNotification: NewPushNotificationHandler(deps.Push, deps.Bus),
		models.NodeKindEmailAutomation:  NewEmailAutomationHandler(deps.Mailer, deps.Bus),
	}

	for kind, h := range handlers {
		if err := registry.Register(kind, h); err != nil {
			return err
		}
	}
	return nil
}
