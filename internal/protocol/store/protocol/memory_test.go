package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civicdesk/internal/catalog"
	citizenmodels "civicdesk/internal/citizen/models"
	citizenstore "civicdesk/internal/citizen/store"
	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

type InMemoryProtocolSuite struct {
	suite.Suite

	services *catalog.InMemory
	citizens *citizenstore.InMemory
	store    *InMemory
	ctx      context.Context

	service *models.Service
	citizen *citizenmodels.Citizen
}

func TestInMemoryProtocolSuite(t *testing.T) {
	suite.Run(t, new(InMemoryProtocolSuite))
}

func (s *InMemoryProtocolSuite) SetupTest() {
	s.services = catalog.NewInMemory()
	s.citizens = citizenstore.NewInMemory()
	s.store = NewInMemory(s.services, s.citizens)
	s.ctx = context.Background()

	s.service = &models.Service{
		ID:           id.ServiceID(uuid.New()),
		Name:         "School Enrollment",
		DepartmentID: id.DepartmentID(uuid.New()),
		ServiceType:  models.ServiceWithData,
		ModuleType:   models.ModuleSchoolEnrollment,
		IsActive:     true,
	}
	s.services.Put(s.service)

	s.citizen = &citizenmodels.Citizen{
		ID:             id.CitizenID(uuid.New()),
		Name:           "Maria Souza",
		DocumentNumber: "12345678901",
	}
	s.citizens.Put(s.citizen)
}

func (s *InMemoryProtocolSuite) newProtocol(number string, createdAt time.Time) *models.Protocol {
	return &models.Protocol{
		ID:           id.NewProtocolID(),
		Number:       number,
		Title:        "School Enrollment",
		Status:       models.StatusLinked,
		CitizenID:    s.citizen.ID,
		ServiceID:    s.service.ID,
		DepartmentID: s.service.DepartmentID,
		ServiceType:  s.service.ServiceType,
		ModuleType:   s.service.ModuleType,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
}

func (s *InMemoryProtocolSuite) TestCreateAndGet() {
	p := s.newProtocol("2026-000001", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, p))

	s.Run("by id", func() {
		got, err := s.store.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(p.Number, got.Number)
	})

	s.Run("by number", func() {
		got, err := s.store.GetByNumber(s.ctx, "2026-000001")
		s.Require().NoError(err)
		s.Equal(p.ID, got.ID)
	})

	s.Run("duplicate number conflicts", func() {
		dup := s.newProtocol("2026-000001", time.Now().UTC())
		s.ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("unknown id", func() {
		_, err := s.store.Get(s.ctx, id.NewProtocolID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryProtocolSuite) TestGetLoaded() {
	p := s.newProtocol("2026-000002", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, p))

	loaded, err := s.store.GetLoaded(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(p.ID, loaded.Protocol.ID)
	s.Equal(s.service.ID, loaded.Service.ID)
	s.Equal(models.ServiceWithData, loaded.Service.ServiceType)
	s.Equal(s.citizen.Name, loaded.Citizen.Name)
}

func (s *InMemoryProtocolSuite) TestUpdateStatus() {
	p := s.newProtocol("2026-000003", time.Now().UTC())
	s.Require().NoError(s.store.Create(s.ctx, p))
	now := time.Now().UTC().Add(time.Hour)

	s.Run("terminal change stamps concluded_at", func() {
		err := s.store.UpdateStatus(s.ctx, p.ID, StatusChange{
			ExpectedStatus: models.StatusLinked,
			NewStatus:      models.StatusCompleted,
			UpdatedAt:      now,
			ConcludedAt:    &now,
		})
		s.Require().NoError(err)

		got, err := s.store.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, got.Status)
		s.Require().NotNil(got.ConcludedAt)
		s.Equal(now, *got.ConcludedAt)
	})

	s.Run("stale expected status conflicts", func() {
		err := s.store.UpdateStatus(s.ctx, p.ID, StatusChange{
			ExpectedStatus: models.StatusLinked,
			NewStatus:      models.StatusInProgress,
			UpdatedAt:      now,
		})
		s.ErrorIs(err, sentinel.ErrConflict)

		got, err := s.store.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, got.Status)
	})

	s.Run("leaving terminal clears concluded_at", func() {
		err := s.store.UpdateStatus(s.ctx, p.ID, StatusChange{
			ExpectedStatus: models.StatusCompleted,
			NewStatus:      models.StatusInProgress,
			UpdatedAt:      now.Add(time.Minute),
		})
		s.Require().NoError(err)

		got, err := s.store.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, got.Status)
		s.Nil(got.ConcludedAt)
	})

	s.Run("unknown id", func() {
		err := s.store.UpdateStatus(s.ctx, id.NewProtocolID(), StatusChange{
			ExpectedStatus: models.StatusLinked,
			NewStatus:      models.StatusPending,
			UpdatedAt:      now,
		})
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryProtocolSuite) TestListByCitizen() {
	base := time.Now().UTC()
	older := s.newProtocol("2026-000004", base)
	newer := s.newProtocol("2026-000005", base.Add(time.Hour))
	s.Require().NoError(s.store.Create(s.ctx, older))
	s.Require().NoError(s.store.Create(s.ctx, newer))

	list, err := s.store.ListByCitizen(s.ctx, s.citizen.ID)
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	s.Equal(newer.ID, list[0].ID)
	s.Equal(older.ID, list[1].ID)

	empty, err := s.store.ListByCitizen(s.ctx, id.CitizenID(uuid.New()))
	s.Require().NoError(err)
	s.Empty(empty)
}
