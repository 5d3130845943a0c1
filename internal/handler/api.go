package handler

import (
	"github.com/miniorg/internal/auth"
	"github.com/miniorg/internal/calendar"
	"github.com/miniorg/internal/service"
	"gorm.io/gorm"
)

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db                *gorm.DB
	tasks             *service.TaskService
	tags              *service.TagService
	events            *service.EventService
	rituals           *service.RitualService
	connections       *service.ConnectionService
	sync              *service.SyncService
	accounts          *service.AccountService
	tokens            *auth.TokenIssuer
	google            calendar.Adapter
	googleRedirectURL string
}

// Options 汇总 NewAPI 需要的外部依赖
type Options struct {
	Mailer            service.Mailer
	Tokens            *auth.TokenIssuer
	Google            calendar.Adapter
	GoogleRedirectURL string
}

// NewAPI constructs a handler set with shared services.
func NewAPI(db *gorm.DB, opts Options) *API {
	adapters := map[string]calendar.Adapter{}
	if opts.Google != nil {
		adapters["google"] = opts.Google
	}

	return &API{
		db:                db,
		tasks:             service.NewTaskService(db),
		tags:              service.NewTagService(db),
		events:            service.NewEventService(db),
		rituals:           service.NewRitualService(db),
		connections:       service.NewConnectionService(db),
		sync:              service.NewSyncService(db, adapters),
		accounts:          service.NewAccountService(db, opts.Mailer),
		tokens:            opts.Tokens,
		google:            opts.Google,
		googleRedirectURL: opts.GoogleRedirectURL,
	}
}

// DB exposes the underlying gorm instance for legacy paths.
func (a *API) DB() *gorm.DB {
	return a.db
}

// Sync 暴露同步服务，供调度器复用同一套适配器
func (a *API) Sync() *service.SyncService {
	return a.sync
}
