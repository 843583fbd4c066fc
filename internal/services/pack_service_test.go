package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EstudaquiPay/internal/db"
)

func TestPackServiceServesFromCache(t *testing.T) {
	src := &fakePackSource{packs: []db.Pack{standardPack()}}
	s := NewPackService(src, time.Minute)

	for i := 0; i < 3; i++ {
		packs, err := s.ActivePacks(context.Background())
		require.NoError(t, err)
		require.Len(t, packs, 1)
	}
	assert.Equal(t, 1, src.loads, "TTL not lapsed, one load expected")
}

func TestPackServiceReloadsAfterTTL(t *testing.T) {
	src := &fakePackSource{packs: []db.Pack{standardPack()}}
	s := NewPackService(src, time.Minute)

	now := time.Now()
	s.now = func() time.Time { return now }

	_, err := s.ActivePacks(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, src.loads)

	now = now.Add(2 * time.Minute)
	_, err = s.ActivePacks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, src.loads)
}

func TestPackServiceExplicitRefresh(t *testing.T) {
	src := &fakePackSource{packs: []db.Pack{standardPack()}}
	s := NewPackService(src, time.Minute)

	_, err := s.ActivePacks(context.Background())
	require.NoError(t, err)

	src.packs = append(src.packs, db.Pack{PackID: "premium", PriceUSD: 25, Credits: 300, Active: true})
	packs, err := s.Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, packs, 2)
	assert.Equal(t, 2, src.loads)
}

func TestPackServiceLookupByID(t *testing.T) {
	src := &fakePackSource{packs: []db.Pack{standardPack()}}
	s := NewPackService(src, time.Minute)

	pack, err := s.GetPackInfoByID(context.Background(), "standard")
	require.NoError(t, err)
	require.NotNil(t, pack)
	assert.Equal(t, 10.00, pack.PriceUSD)

	missing, err := s.GetPackInfoByID(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestPackServiceSourceErrorPropagates(t *testing.T) {
	src := &fakePackSource{err: errors.New("store down")}
	s := NewPackService(src, time.Minute)

	_, err := s.ActivePacks(context.Background())
	require.Error(t, err)
}

func TestPriceToTokenAmount(t *testing.T) {
	assert.Equal(t, uint64(10_000_000), PriceToTokenAmount(10.00))
	assert.Equal(t, uint64(9_990_000), PriceToTokenAmount(9.99))
	assert.Equal(t, uint64(500_000), PriceToTokenAmount(0.5))
	assert.Equal(t, uint64(0), PriceToTokenAmount(0))
}
