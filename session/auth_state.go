package session

import (
	"chat-ingest/authstate"
	"chat-ingest/contract"
	"context"
)

// AuthState is the authentication state of one session: its credentials
// and the key store handed to the transport.
type AuthState struct {
	store     contract.IAuthStore
	sessionID string
}

func NewAuthState(store contract.IAuthStore, sessionID string) AuthState {
	return AuthState{store: store, sessionID: sessionID}
}

// Creds returns the stored credentials. found is false on a fresh session.
func (a AuthState) Creds(ctx context.Context) (creds authstate.Value, found bool, err error) {
	return a.store.LoadCredential(ctx, a.sessionID)
}

func (a AuthState) SaveCreds(ctx context.Context, creds authstate.Value) error {
	_, err := a.store.SaveCredential(ctx, a.sessionID, creds)
	return err
}

func (a AuthState) Keys() contract.KeyStore {
	return sessionKeys(a)
}

func (a AuthState) Clear(ctx context.Context) error {
	return a.store.ClearSession(ctx, a.sessionID)
}

type sessionKeys AuthState

func (k sessionKeys) Get(ctx context.Context, category string, ids []string) (map[string]authstate.Value, error) {
	return k.store.LoadKeys(ctx, k.sessionID, category, ids)
}

func (k sessionKeys) Set(ctx context.Context, batch authstate.KeyBatch) error {
	return k.store.SaveKeys(ctx, k.sessionID, batch)
}
