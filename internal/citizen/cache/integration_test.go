//go:build integration

package cache_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civicdesk/internal/citizen/cache"
	"civicdesk/internal/citizen/models"
	"civicdesk/internal/citizen/store"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite

	redis *containers.RedisContainer
	inner *store.InMemory
	dir   *cache.Directory
	ctx   context.Context

	citizen *models.Citizen
}

func TestRedisCacheSuite(t *testing.T) {
	redis := containers.NewRedisContainer(t)
	suite.Run(t, &RedisCacheSuite{redis: redis})
}

func (s *RedisCacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.redis.FlushAll(s.ctx))

	s.inner = store.NewInMemory()
	s.dir = cache.New(s.inner, s.redis.Client)

	s.citizen = &models.Citizen{
		ID:             id.CitizenID(uuid.New()),
		Name:           "Clara Dias",
		DocumentNumber: "45678912300",
	}
	s.inner.Put(s.citizen)
}

func (s *RedisCacheSuite) TestFindByIDIsCached() {
	first, err := s.dir.FindByID(s.ctx, s.citizen.ID)
	s.Require().NoError(err)
	s.Equal(s.citizen.Name, first.Name)

	// Remove from the inner store; the cached copy must still serve.
	s.inner.Delete(s.citizen.ID)

	second, err := s.dir.FindByID(s.ctx, s.citizen.ID)
	s.Require().NoError(err)
	s.Equal(s.citizen.Name, second.Name)
}

func (s *RedisCacheSuite) TestFindByDocumentIsCachedNormalized() {
	first, err := s.dir.FindByDocument(s.ctx, "456.789.123-00")
	s.Require().NoError(err)
	s.Equal(s.citizen.ID, first.ID)

	s.inner.Delete(s.citizen.ID)

	// Different punctuation, same normalized document, same cache entry.
	second, err := s.dir.FindByDocument(s.ctx, "45678912300")
	s.Require().NoError(err)
	s.Equal(s.citizen.ID, second.ID)
}

func (s *RedisCacheSuite) TestInvalidateDropsEntries() {
	_, err := s.dir.FindByID(s.ctx, s.citizen.ID)
	s.Require().NoError(err)
	_, err = s.dir.FindByDocument(s.ctx, s.citizen.DocumentNumber)
	s.Require().NoError(err)

	s.inner.Delete(s.citizen.ID)
	s.dir.Invalidate(s.ctx, s.citizen.ID, s.citizen.DocumentNumber)

	_, err = s.dir.FindByID(s.ctx, s.citizen.ID)
	s.Error(err)
}

func (s *RedisCacheSuite) TestNameLookupBypassesCache() {
	// Fuzzy lookups always hit the inner store directly.
	_, err := s.dir.FindByNameAndBirthDate(s.ctx, "Clara", s.citizen.CreatedAt)
	s.Error(err)
}
