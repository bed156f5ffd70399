// Copyright (c) 2025 The tokenkeeper Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"tokenkeeper/cli/internal/auth"
	"tokenkeeper/cli/internal/config"
	apperrors "tokenkeeper/cli/internal/errors"
	"tokenkeeper/cli/internal/identity"
	"tokenkeeper/cli/internal/keychain"
	"tokenkeeper/cli/internal/logging"
	"tokenkeeper/cli/internal/session"
	"tokenkeeper/cli/internal/store"
)

// openStore builds the durable store selected by c. The returned close
// function releases any connection the store holds.
func openStore(ctx context.Context, c config.Config) (store.Store, func(), error) {
	noop := func() {}
	switch c.Store.Backend {
	case store.BackendKeyring:
		km, err := keychain.NewManager(c.Store.Namespace)
		if err != nil {
			return nil, noop, apperrors.Wrap(apperrors.StorageFailed, "open keychain", err)
		}
		return km, noop, nil
	case store.BackendFile:
		path := c.Store.FilePath
		if path == "" {
			var err error
			if path, err = store.DefaultFilePath(); err != nil {
				return nil, noop, apperrors.Wrap(apperrors.StorageFailed, "resolve session file", err)
			}
		}
		return store.NewFile(path), noop, nil
	case store.BackendSQLite:
		path := c.Store.SQLitePath
		if path == "" {
			var err error
			if path, err = store.DefaultSQLitePath(); err != nil {
				return nil, noop, apperrors.Wrap(apperrors.StorageFailed, "resolve session database", err)
			}
		}
		db, err := store.OpenSQLite(path, c.Store.Namespace)
		if err != nil {
			return nil, noop, apperrors.Wrap(apperrors.StorageFailed, "open session database", err)
		}
		return db, func() { _ = db.Close() }, nil
	case store.BackendRedis:
		r, err := store.DialRedis(ctx, c.Store.RedisAddr, c.Store.RedisDB, c.Store.Namespace)
		if err != nil {
			return nil, noop, apperrors.Wrap(apperrors.StorageFailed, "connect redis", err)
		}
		return r, func() { _ = r.Close() }, nil
	case store.BackendPostgres:
		pg, err := store.DialPostgres(ctx, c.Store.PostgresDSN, c.Store.Namespace)
		if err != nil {
			return nil, noop, apperrors.Wrap(apperrors.StorageFailed, "connect postgres", err)
		}
		return pg, pg.Close, nil
	case store.BackendMemory:
		return store.NewMemory(), noop, nil
	}
	return nil, noop, apperrors.New(apperrors.ConfigInvalid, fmt.Sprintf("unknown store backend %q", c.Store.Backend))
}

// openSession opens the configured store and recovers the session left by a
// previous run. Extra options are applied after the configured ones.
func openSession(ctx context.Context, c config.Config, opts ...session.Option) (*session.Manager, func(), error) {
	st, closeStore, err := openStore(ctx, c)
	if err != nil {
		return nil, closeStore, err
	}
	logger := logging.WithStore(c.Store.Backend)
	base := []session.Option{
		session.WithExpiryMargin(c.ExpiryMargin.Std()),
		session.WithLogger(logger),
	}
	mgr := session.New(st, append(base, opts...)...)
	mgr.Recover()
	return mgr, closeStore, nil
}

// newAuthService wires the configured identity provider to mgr.
func newAuthService(c config.Config, mgr *session.Manager) (*auth.Service, *identity.Client) {
	idp := identity.NewClient(c.Identity.BaseURL, c.Identity.APIKey)
	return auth.NewService(idp, mgr, clockwork.NewRealClock()), idp
}
