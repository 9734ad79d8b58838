package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	service := NewAuthService(&fakeDB{}, newFakeRedis())

	hash, err := service.HashPassword("SecurePass1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if hash == "SecurePass1" {
		t.Error("expected hash to differ from the password")
	}
	if !service.VerifyPassword(hash, "SecurePass1") {
		t.Error("expected correct password to verify")
	}
	if service.VerifyPassword(hash, "WrongPass1") {
		t.Error("expected wrong password to fail")
	}
}

func TestGenerateSessionToken(t *testing.T) {
	service := NewAuthService(&fakeDB{}, newFakeRedis())

	token, hash, err := service.GenerateSessionToken()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(token) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(token))
	}
	if len(hash) != 64 {
		t.Errorf("expected 64 hex chars of digest, got %d", len(hash))
	}
	if token == hash {
		t.Error("expected stored hash to differ from the token")
	}

	token2, _, err := service.GenerateSessionToken()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == token2 {
		t.Error("expected tokens to be unique")
	}
}

func TestCreateSessionRedisFirst(t *testing.T) {
	redis := newFakeRedis()
	db := &fakeDB{}
	service := NewAuthService(db, redis)

	userID := uuid.New()
	token, err := service.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	key := sessionKeyPrefix + service.hashToken(token)
	stored, err := redis.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("expected session in redis, got %v", err)
	}
	if stored != userID.String() {
		t.Errorf("expected stored user id %s, got %s", userID, stored)
	}
	if len(db.execCalls) != 0 {
		t.Error("expected no database write when redis accepts the session")
	}
}

func TestCreateSessionFallsBackToDatabase(t *testing.T) {
	redis := newFakeRedis()
	redis.setErr = errors.New("redis down")
	db := &fakeDB{}
	service := NewAuthService(db, redis)

	userID := uuid.New()
	token, err := service.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if token == "" {
		t.Fatal("expected a token")
	}

	if len(db.execCalls) != 1 || !strings.Contains(db.execCalls[0].sql, "INSERT INTO sessions") {
		t.Fatalf("expected a session insert, got %v", db.execCalls)
	}
	if db.execCalls[0].args[0] != userID {
		t.Errorf("unexpected insert args: %v", db.execCalls[0].args)
	}
}

func TestValidateSessionRedisHit(t *testing.T) {
	userID := uuid.New()
	redis := newFakeRedis()
	db := &fakeDB{
		queryRowFunc: func(sql string, args []any) Row {
			return fakeRow{values: userRowValues(userID, "eve@example.com", "7777")}
		},
	}
	service := NewAuthService(db, redis)

	token, err := service.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	user, err := service.ValidateSession(context.Background(), token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != userID {
		t.Errorf("expected user %s, got %s", userID, user.ID)
	}
	if redis.expireCalls != 1 {
		t.Errorf("expected the sliding expiry to be extended, got %d expire calls", redis.expireCalls)
	}
}

func TestValidateSessionDatabaseFallback(t *testing.T) {
	userID := uuid.New()
	db := &fakeDB{
		queryRowFunc: func(sql string, args []any) Row {
			if strings.Contains(sql, "FROM sessions") {
				return fakeRow{values: []any{uuid.New(), userID, "hash", time.Now().Add(time.Hour), time.Now()}}
			}
			return fakeRow{values: userRowValues(userID, "eve@example.com", "7777")}
		},
	}
	service := NewAuthService(db, newFakeRedis())

	user, err := service.ValidateSession(context.Background(), "sometoken")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.ID != userID {
		t.Errorf("expected user %s, got %s", userID, user.ID)
	}
}

func TestValidateSessionExpired(t *testing.T) {
	sessionID := uuid.New()
	db := &fakeDB{
		queryRowFunc: func(sql string, args []any) Row {
			return fakeRow{values: []any{sessionID, uuid.New(), "hash", time.Now().Add(-time.Hour), time.Now().Add(-48 * time.Hour)}}
		},
	}
	service := NewAuthService(db, newFakeRedis())

	_, err := service.ValidateSession(context.Background(), "staletoken")
	if !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}

	var deleted bool
	for _, call := range db.execCalls {
		if strings.Contains(call.sql, "DELETE FROM sessions") && call.args[0] == sessionID {
			deleted = true
		}
	}
	if !deleted {
		t.Error("expected the expired session to be removed")
	}
}

func TestValidateSessionNotFound(t *testing.T) {
	db := &fakeDB{
		queryRowFunc: func(sql string, args []any) Row {
			return fakeRow{err: pgx.ErrNoRows}
		},
	}
	service := NewAuthService(db, newFakeRedis())

	if _, err := service.ValidateSession(context.Background(), "unknown"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestDeleteSession(t *testing.T) {
	userID := uuid.New()
	redis := newFakeRedis()
	db := &fakeDB{}
	service := NewAuthService(db, redis)

	token, err := service.CreateSession(context.Background(), userID)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if err := service.DeleteSession(context.Background(), token); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	key := sessionKeyPrefix + service.hashToken(token)
	if _, err := redis.Get(context.Background(), key); err == nil {
		t.Error("expected session gone from redis")
	}
	if len(db.execCalls) != 1 || !strings.Contains(db.execCalls[0].sql, "DELETE FROM sessions") {
		t.Fatalf("expected the database copy deleted too, got %v", db.execCalls)
	}
}

func TestConfirmPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("SecurePass1"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hashing fixture password: %v", err)
	}
	db := &fakeDB{
		queryRowFunc: func(sql string, args []any) Row {
			return fakeRow{values: []any{string(hash)}}
		},
	}
	service := NewAuthService(db, newFakeRedis())

	if err := service.ConfirmPassword(context.Background(), uuid.New(), "SecurePass1"); err != nil {
		t.Errorf("expected correct password to confirm, got %v", err)
	}
	if err := service.ConfirmPassword(context.Background(), uuid.New(), "WrongPass1"); !errors.Is(err, ErrReauthRequired) {
		t.Errorf("expected ErrReauthRequired, got %v", err)
	}
}

func TestConfirmPasswordUserGone(t *testing.T) {
	db := &fakeDB{
		queryRowFunc: func(sql string, args []any) Row {
			return fakeRow{err: pgx.ErrNoRows}
		},
	}
	service := NewAuthService(db, newFakeRedis())

	if err := service.ConfirmPassword(context.Background(), uuid.New(), "whatever"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("expected ErrUserNotFound, got %v", err)
	}
}
