package store

import (
	"context"
	"errors"
	"testing"
)

// runStoreContract exercises the behaviour every backend must share.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("create then duplicate create fails", func(t *testing.T) {
		s := newStore(t)

		sess, err := s.Create(ctx, "tok-a")
		if err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if sess.Token != "tok-a" {
			t.Errorf("Create() token = %q, want tok-a", sess.Token)
		}

		if _, err := s.Create(ctx, "tok-a"); !errors.Is(err, ErrInsertFailed) {
			t.Errorf("duplicate Create() error = %v, want ErrInsertFailed", err)
		}
	})

	t.Run("update renames the session", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.Create(ctx, "tok-old"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}

		sess, err := s.Update(ctx, "tok-old", "tok-new")
		if err != nil {
			t.Fatalf("Update() error = %v", err)
		}
		if sess.Token != "tok-new" {
			t.Errorf("Update() token = %q, want tok-new", sess.Token)
		}

		if _, err := s.Update(ctx, "tok-old", "tok-other"); !errors.Is(err, ErrUpdateFailed) {
			t.Errorf("Update() of replaced token error = %v, want ErrUpdateFailed", err)
		}
		// the new token is live, so creating it again must collide
		if _, err := s.Create(ctx, "tok-new"); !errors.Is(err, ErrInsertFailed) {
			t.Errorf("Create() of renamed token error = %v, want ErrInsertFailed", err)
		}
		// the old token is gone, so it can be created again
		if _, err := s.Create(ctx, "tok-old"); err != nil {
			t.Errorf("Create() of replaced token error = %v", err)
		}
	})

	t.Run("update of unknown token fails", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.Update(ctx, "missing", "tok-x"); !errors.Is(err, ErrUpdateFailed) {
			t.Errorf("Update() error = %v, want ErrUpdateFailed", err)
		}
		// a failed update must not have created the new token
		if _, err := s.Create(ctx, "tok-x"); err != nil {
			t.Errorf("Create() after failed update error = %v", err)
		}
	})

	t.Run("update onto an existing token fails and keeps both", func(t *testing.T) {
		s := newStore(t)

		for _, tok := range []string{"tok-1", "tok-2"} {
			if _, err := s.Create(ctx, tok); err != nil {
				t.Fatalf("Create(%s) error = %v", tok, err)
			}
		}

		if _, err := s.Update(ctx, "tok-1", "tok-2"); !errors.Is(err, ErrUpdateFailed) {
			t.Errorf("Update() error = %v, want ErrUpdateFailed", err)
		}
		if _, err := s.Update(ctx, "tok-1", "tok-3"); err != nil {
			t.Errorf("tok-1 should still be live: %v", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		s := newStore(t)

		if _, err := s.Create(ctx, "tok-d"); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
		if err := s.Delete(ctx, "tok-d"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Delete(ctx, "tok-d"); err != nil {
			t.Errorf("second Delete() error = %v", err)
		}
		if err := s.Delete(ctx, "never-existed"); err != nil {
			t.Errorf("Delete() of unknown token error = %v", err)
		}
		if _, err := s.Update(ctx, "tok-d", "tok-e"); !errors.Is(err, ErrUpdateFailed) {
			t.Errorf("Update() after Delete() error = %v, want ErrUpdateFailed", err)
		}
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}
