package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civicdesk/internal/citizen/models"
	id "civicdesk/pkg/domain"
	"civicdesk/pkg/platform/sentinel"
)

type InMemoryDirectorySuite struct {
	suite.Suite

	store *InMemory
	ctx   context.Context
}

func TestInMemoryDirectorySuite(t *testing.T) {
	suite.Run(t, new(InMemoryDirectorySuite))
}

func (s *InMemoryDirectorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryDirectorySuite) seed(name, document string, birthDate *time.Time) *models.Citizen {
	c := &models.Citizen{
		ID:             id.CitizenID(uuid.New()),
		Name:           name,
		DocumentNumber: document,
		BirthDate:      birthDate,
		CreatedAt:      time.Now().UTC(),
	}
	s.store.Put(c)
	return c
}

func (s *InMemoryDirectorySuite) TestFindByID() {
	c := s.seed("Maria Souza", "12345678901", nil)

	s.Run("found", func() {
		got, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal(c.ID, got.ID)
		s.Equal("Maria Souza", got.Name)
	})

	s.Run("not found", func() {
		_, err := s.store.FindByID(s.ctx, id.CitizenID(uuid.New()))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns a copy", func() {
		got, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		got.Name = "mutated"

		again, err := s.store.FindByID(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Equal("Maria Souza", again.Name)
	})
}

func (s *InMemoryDirectorySuite) TestFindByDocument() {
	c := s.seed("Joao Lima", "98765432100", nil)

	s.Run("exact match", func() {
		got, err := s.store.FindByDocument(s.ctx, "98765432100")
		s.Require().NoError(err)
		s.Equal(c.ID, got.ID)
	})

	s.Run("normalizes punctuation", func() {
		got, err := s.store.FindByDocument(s.ctx, "987.654.321-00")
		s.Require().NoError(err)
		s.Equal(c.ID, got.ID)
	})

	s.Run("empty document", func() {
		_, err := s.store.FindByDocument(s.ctx, "")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown document", func() {
		_, err := s.store.FindByDocument(s.ctx, "00000000000")
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *InMemoryDirectorySuite) TestFindByNameAndBirthDate() {
	birth := time.Date(1990, time.March, 14, 0, 0, 0, 0, time.UTC)
	c := s.seed("Ana Clara Pereira", "11122233344", &birth)
	s.seed("Ana Clara Pereira", "55566677788", nil)

	s.Run("substring match case-insensitive", func() {
		got, err := s.store.FindByNameAndBirthDate(s.ctx, "clara pereira", birth)
		s.Require().NoError(err)
		s.Equal(c.ID, got.ID)
	})

	s.Run("wrong birth date", func() {
		_, err := s.store.FindByNameAndBirthDate(s.ctx, "Ana Clara", birth.AddDate(1, 0, 0))
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("unknown name", func() {
		_, err := s.store.FindByNameAndBirthDate(s.ctx, "Nobody", birth)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}
