package policy

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"civicdesk/internal/protocol/models"
	id "civicdesk/pkg/domain"
)

type MatrixSuite struct {
	suite.Suite
	matrix *Matrix
}

func TestMatrixSuite(t *testing.T) {
	suite.Run(t, new(MatrixSuite))
}

func (s *MatrixSuite) SetupTest() {
	s.matrix = Default()
}

func (s *MatrixSuite) TestCitizenTransitions() {
	s.Run("citizen may cancel a linked protocol", func() {
		s.True(s.matrix.IsAllowed(models.StatusLinked, models.StatusCancelled, id.RoleCitizen))
	})

	s.Run("citizen may push a pending case back into progress", func() {
		s.True(s.matrix.IsAllowed(models.StatusPending, models.StatusInProgress, id.RoleCitizen))
		s.True(s.matrix.IsAllowed(models.StatusNeedsUpdate, models.StatusInProgress, id.RoleCitizen))
	})

	s.Run("citizen can never complete directly", func() {
		for _, from := range models.AllStatuses() {
			s.False(s.matrix.IsAllowed(from, models.StatusCompleted, id.RoleCitizen),
				"citizen must not complete from %s", from)
		}
	})

	s.Run("citizen cannot leave terminal statuses", func() {
		s.False(s.matrix.IsAllowed(models.StatusCompleted, models.StatusInProgress, id.RoleCitizen))
		s.False(s.matrix.IsAllowed(models.StatusCancelled, models.StatusLinked, id.RoleCitizen))
	})
}

func (s *MatrixSuite) TestStaffTransitions() {
	s.Run("staff advances linked through progress to completed", func() {
		s.True(s.matrix.IsAllowed(models.StatusLinked, models.StatusInProgress, id.RoleStaff))
		s.True(s.matrix.IsAllowed(models.StatusInProgress, models.StatusCompleted, id.RoleStaff))
	})

	s.Run("staff cannot leave terminal statuses", func() {
		s.False(s.matrix.IsAllowed(models.StatusCompleted, models.StatusInProgress, id.RoleStaff))
		s.False(s.matrix.IsAllowed(models.StatusCancelled, models.StatusInProgress, id.RoleStaff))
	})
}

func (s *MatrixSuite) TestAdministrativeOverride() {
	s.Run("admin may perform any transition including out of terminal", func() {
		s.True(s.matrix.IsAllowed(models.StatusCompleted, models.StatusInProgress, id.RoleAdmin))
		s.True(s.matrix.IsAllowed(models.StatusCancelled, models.StatusLinked, id.RoleSuperAdmin))
	})
}

func (s *MatrixSuite) TestFailClosed() {
	s.Run("unknown role is denied everything", func() {
		s.False(s.matrix.IsAllowed(models.StatusLinked, models.StatusInProgress, id.ActorRole("AUDITOR")))
	})

	s.Run("zero matrix denies everything", func() {
		var empty Matrix
		s.False(empty.IsAllowed(models.StatusLinked, models.StatusInProgress, id.RoleStaff))
	})
}

func (s *MatrixSuite) TestTerminal() {
	s.True(s.matrix.IsTerminal(models.StatusCompleted))
	s.True(s.matrix.IsTerminal(models.StatusCancelled))
	s.False(s.matrix.IsTerminal(models.StatusLinked))
	s.False(s.matrix.IsTerminal(models.StatusInProgress))
}

func (s *MatrixSuite) TestCompletionGate() {
	s.Run("with-data service must pass through an approval status", func() {
		s.True(s.matrix.CompletionAllowed(models.ServiceWithData, models.StatusInProgress))
		s.False(s.matrix.CompletionAllowed(models.ServiceWithData, models.StatusLinked))
		s.False(s.matrix.CompletionAllowed(models.ServiceWithData, models.StatusPending))
	})

	s.Run("without-data service has no gate", func() {
		s.True(s.matrix.CompletionAllowed(models.ServiceWithoutData, models.StatusLinked))
		s.True(s.matrix.CompletionAllowed(models.ServiceWithoutData, models.StatusPending))
	})
}

func (s *MatrixSuite) TestDefaultsAndActions() {
	s.Equal("Protocol cancelled", s.matrix.DefaultComment(models.StatusCancelled))
	s.Equal("Status changed to *", s.matrix.DefaultComment(Wildcard))
	s.Equal(models.ActionCompleted, s.matrix.ActionFor(models.StatusCompleted))
	s.Equal(models.ActionStatusChanged, s.matrix.ActionFor(Wildcard))
}
