package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civicdesk/internal/citizenlink/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

type InMemoryLinkSuite struct {
	suite.Suite

	store *InMemory
	ctx   context.Context
}

func TestInMemoryLinkSuite(t *testing.T) {
	suite.Run(t, new(InMemoryLinkSuite))
}

func (s *InMemoryLinkSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryLinkSuite) newLink(protocolID id.ProtocolID, createdAt time.Time) *models.Link {
	return &models.Link{
		ID:              id.NewLinkID(),
		ProtocolID:      protocolID,
		LinkedCitizenID: id.CitizenID(uuid.New()),
		LinkType:        models.LinkStudent,
		Role:            models.RoleBeneficiary,
		ContextData:     map[string]any{"grade": "5"},
		CreatedAt:       createdAt,
	}
}

func (s *InMemoryLinkSuite) TestCreateAndGet() {
	protocolID := id.NewProtocolID()
	link := s.newLink(protocolID, time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, link))

	s.Run("duplicate id conflicts", func() {
		s.ErrorIs(s.store.Create(s.ctx, link), sentinel.ErrConflict)
	})

	s.Run("get returns a copy", func() {
		got, err := s.store.Get(s.ctx, link.ID)
		s.Require().NoError(err)
		s.Equal(link.LinkedCitizenID, got.LinkedCitizenID)

		got.ContextData["grade"] = "6"
		again, err := s.store.Get(s.ctx, link.ID)
		s.Require().NoError(err)
		s.Equal("5", again.ContextData["grade"])
	})

	s.Run("unknown id", func() {
		_, err := s.store.Get(s.ctx, id.NewLinkID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryLinkSuite) TestListByProtocol() {
	protocolID := id.NewProtocolID()
	base := time.Now().UTC()
	second := s.newLink(protocolID, base.Add(time.Second))
	first := s.newLink(protocolID, base)
	other := s.newLink(id.NewProtocolID(), base)
	for _, l := range []*models.Link{second, first, other} {
		s.Require().NoError(s.store.Create(s.ctx, l))
	}

	links, err := s.store.ListByProtocol(s.ctx, protocolID)
	s.Require().NoError(err)
	s.Require().Len(links, 2)
	s.Equal(first.ID, links[0].ID)
	s.Equal(second.ID, links[1].ID)
}

func (s *InMemoryLinkSuite) TestUpdate() {
	link := s.newLink(id.NewProtocolID(), time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, link))

	s.Run("partial update", func() {
		role := models.RoleCompanion
		rel := "FILHO"
		got, err := s.store.Update(s.ctx, link.ID, LinkUpdate{Role: &role, Relationship: &rel})
		s.Require().NoError(err)
		s.Equal(models.RoleCompanion, got.Role)
		s.Equal("FILHO", got.Relationship)
		s.Equal(models.LinkStudent, got.LinkType)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Update(s.ctx, id.NewLinkID(), LinkUpdate{})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryLinkSuite) TestDelete() {
	link := s.newLink(id.NewProtocolID(), time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, link))

	s.Require().NoError(s.store.Delete(s.ctx, link.ID))
	s.ErrorIs(s.store.Delete(s.ctx, link.ID), sentinel.ErrNotFound)
	_, err := s.store.Get(s.ctx, link.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
