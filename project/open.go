package project

import (
	"fmt"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/config"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/locks"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/logger"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile/store"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/store/jsonfile"
	"github.com/lukeborglin-coder/jaice-dashboard-sub008/store/sqlite"
)

// Open builds a Service from cfg. The returned close func releases the
// store and the Redis connection, if any.
func Open(cfg config.Config, log *logger.Logger) (*Service, func() error, error) {
	var closers []func() error
	closeAll := func() error {
		var first error
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil && first == nil {
				first = err
			}
		}
		return first
	}

	var ps reconcile.ProjectStore
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		st, err := sqlite.New(cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		closers = append(closers, st.Close)
		ps = st
	case config.DriverJSON:
		st, err := jsonfile.New(cfg.Store.DataDir)
		if err != nil {
			return nil, nil, err
		}
		ps = st
	case config.DriverMemory:
		ps = store.NewMemory()
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	var locker reconcile.Locker = locks.NewLocal(cfg.LockWait)
	if cfg.RedisURL != "" {
		rl, err := locks.NewRedis(cfg.RedisURL, cfg.LockTTL, cfg.LockWait)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		closers = append(closers, rl.Close)
		locker = rl
	}

	opts := reconcile.DefaultOptions()
	if cfg.IdentitySheet != "" {
		opts.IdentitySheet = cfg.IdentitySheet
	}

	log.Info("project service ready",
		"store", cfg.Store.Driver,
		"redisLocks", cfg.RedisURL != "",
		"identitySheet", opts.IdentitySheet,
	)
	svc := NewService(ps, locker, log, Options{
		Reconcile:            opts,
		MigrationConcurrency: cfg.MigrationConcurrency,
	})
	return svc, closeAll, nil
}
