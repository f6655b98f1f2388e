package service

import (
	"testing"
	"time"

	"github.com/bigkaa/goartstore/verify-module/internal/domain/model"
)

// TestCacheService_GetSet проверяет доступ по обоим ключам.
func TestCacheService_GetSet(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)

	record := &model.VideoRecord{
		VerificationID: "4f7c1d2e-0000-4000-8000-000000000001",
		ContentHash:    "ab12",
		Title:          "Брифинг",
	}

	if _, ok := cache.GetByID(record.VerificationID); ok {
		t.Fatal("ожидался cache miss для нового ключа")
	}

	cache.Set(record)

	got, ok := cache.GetByID(record.VerificationID)
	if !ok || got.Title != "Брифинг" {
		t.Fatalf("GetByID() = (%v, %v), ожидался hit", got, ok)
	}
	got, ok = cache.GetByHash("ab12")
	if !ok || got.VerificationID != record.VerificationID {
		t.Fatalf("GetByHash() = (%v, %v), ожидался hit", got, ok)
	}
	if cache.Len() != 2 {
		t.Errorf("Len() = %d, ожидалось 2", cache.Len())
	}
}

// TestCacheService_KeysDoNotCollide проверяет, что id и hash не пересекаются.
func TestCacheService_KeysDoNotCollide(t *testing.T) {
	cache := NewCacheService(100, 5*time.Minute)
	cache.Set(&model.VideoRecord{VerificationID: "same", ContentHash: "other"})

	if _, ok := cache.GetByHash("same"); ok {
		t.Error("GetByHash() не должен находить запись по verificationId")
	}
}

// TestCacheService_TTL проверяет истечение записей.
func TestCacheService_TTL(t *testing.T) {
	cache := NewCacheService(100, 50*time.Millisecond)
	cache.Set(&model.VideoRecord{VerificationID: "id-1", ContentHash: "h-1"})

	time.Sleep(100 * time.Millisecond)

	if _, ok := cache.GetByID("id-1"); ok {
		t.Error("запись должна истечь по TTL")
	}
}

// TestCacheService_SetNil не должен паниковать.
func TestCacheService_SetNil(t *testing.T) {
	cache := NewCacheService(10, time.Minute)
	cache.Set(nil)
	if cache.Len() != 0 {
		t.Errorf("Len() = %d, ожидалось 0", cache.Len())
	}
}
