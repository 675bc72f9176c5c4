package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"civicdesk/internal/catalog"
	citizenmodels "civicdesk/internal/citizen/models"
	citizenstore "civicdesk/internal/citizen/store"
	"civicdesk/internal/module/dispatcher"
	modulestore "civicdesk/internal/module/store"
	"civicdesk/internal/notify"
	"civicdesk/internal/protocol/models"
	"civicdesk/internal/protocol/policy"
	historystore "civicdesk/internal/protocol/store/history"
	protocolstore "civicdesk/internal/protocol/store/protocol"
	id "civicdesk/pkg/domain"
	dErrors "civicdesk/pkg/domain-errors"
	"civicdesk/pkg/requestcontext"
)

type recordingNotifier struct {
	events []notify.Event
}

func (n *recordingNotifier) Publish(_ context.Context, event notify.Event) error {
	n.events = append(n.events, event)
	return nil
}

type EngineSuite struct {
	suite.Suite

	services  *catalog.InMemory
	citizens  *citizenstore.InMemory
	protocols *protocolstore.InMemory
	history   *historystore.InMemory
	entities  *modulestore.InMemory
	notifier  *recordingNotifier
	engine    *Engine
	ctx       context.Context
	now       time.Time

	staffID id.UserID
	seeded  int
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.services = catalog.NewInMemory()
	s.citizens = citizenstore.NewInMemory()
	s.protocols = protocolstore.NewInMemory(s.services, s.citizens)
	s.history = historystore.NewInMemory()
	s.entities = modulestore.NewInMemory()
	s.notifier = &recordingNotifier{}
	s.engine = New(s.protocols, s.history, policy.Default(),
		dispatcher.New(s.entities), WithNotifier(s.notifier))

	s.now = time.Date(2026, time.March, 3, 10, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.staffID = id.UserID(uuid.New())
}

// seedProtocol creates a service, citizen and protocol in the given status
// and, when the service routes to a module, a pending side record.
func (s *EngineSuite) seedProtocol(serviceType models.ServiceType, moduleType models.ModuleType, status models.Status) *models.Protocol {
	service := &models.Service{
		ID:           id.ServiceID(uuid.New()),
		Name:         "Test Service",
		DepartmentID: id.DepartmentID(uuid.New()),
		ServiceType:  serviceType,
		ModuleType:   moduleType,
		IsActive:     true,
	}
	s.services.Put(service)

	citizen := &citizenmodels.Citizen{
		ID:   id.CitizenID(uuid.New()),
		Name: "Maria Souza",
	}
	s.citizens.Put(citizen)

	s.seeded++
	protocol := &models.Protocol{
		ID:           id.NewProtocolID(),
		Number:       fmt.Sprintf("2026-%06d", s.seeded),
		Title:        service.Name,
		Status:       status,
		CitizenID:    citizen.ID,
		ServiceID:    service.ID,
		DepartmentID: service.DepartmentID,
		ServiceType:  serviceType,
		ModuleType:   moduleType,
		CreatedAt:    s.now.Add(-time.Hour),
		UpdatedAt:    s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.protocols.Create(s.ctx, protocol))
	if moduleType != "" {
		s.entities.Seed(moduleType, protocol.ID, modulestore.StatePending)
	}
	return protocol
}

func (s *EngineSuite) update(p *models.Protocol, next models.Status, role id.ActorRole) (*TransitionResult, error) {
	return s.engine.UpdateStatus(s.ctx, UpdateStatusInput{
		ProtocolID: p.ID,
		NewStatus:  next,
		ActorID:    s.staffID,
		ActorRole:  role,
	})
}

func (s *EngineSuite) TestStaffFlowActivatesAndCompletesModuleRecord() {
	p := s.seedProtocol(models.ServiceWithData, models.ModuleSchoolEnrollment, models.StatusLinked)

	res, err := s.update(p, models.StatusInProgress, id.RoleStaff)
	s.Require().NoError(err)
	s.Equal(models.StatusLinked, res.OldStatus)
	s.Equal(models.StatusInProgress, res.NewStatus)
	s.False(res.NoOp)

	state, _ := s.entities.StateOf(models.ModuleSchoolEnrollment, p.ID)
	s.Equal(modulestore.StateActive, state)

	res, err = s.update(p, models.StatusCompleted, id.RoleStaff)
	s.Require().NoError(err)
	s.Require().NotNil(res.Protocol.ConcludedAt)
	s.Equal(s.now, *res.Protocol.ConcludedAt)

	state, _ = s.entities.StateOf(models.ModuleSchoolEnrollment, p.ID)
	s.Equal(modulestore.StateCompleted, state)

	s.Run("one history entry per transition", func() {
		entries, err := s.engine.History(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 2)
		s.Equal(models.ActionCompleted, entries[0].Action)
		s.Equal(models.ActionExecutionStart, entries[1].Action)
		s.Equal("Protocol in progress", entries[1].Comment)
	})
}

func (s *EngineSuite) TestSameStatusIsANoOp() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusPending)

	res, err := s.update(p, models.StatusPending, id.RoleStaff)
	s.Require().NoError(err)
	s.True(res.NoOp)
	s.Equal(models.StatusPending, res.NewStatus)

	entries, err := s.engine.History(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(entries)
	s.Empty(s.notifier.events)
}

func (s *EngineSuite) TestTerminalStatusesAreImmutableBelowAdmin() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusCompleted)

	s.Run("staff denied", func() {
		_, err := s.update(p, models.StatusInProgress, id.RoleStaff)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

		var de *dErrors.Error
		s.Require().ErrorAs(err, &de)
		s.Equal("COMPLETED", de.Meta["current_status"])
		s.Equal("IN_PROGRESS", de.Meta["attempted_status"])
		s.Equal("STAFF", de.Meta["actor_role"])
	})

	s.Run("citizen denied", func() {
		_, err := s.update(p, models.StatusCancelled, id.RoleCitizen)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("admin may reopen and concluded_at is cleared", func() {
		res, err := s.update(p, models.StatusInProgress, id.RoleAdmin)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, res.NewStatus)
		s.Nil(res.Protocol.ConcludedAt)
	})
}

func (s *EngineSuite) TestCompletionGate() {
	s.Run("with-data service requires in-progress first", func() {
		p := s.seedProtocol(models.ServiceWithData, "", models.StatusLinked)
		_, err := s.update(p, models.StatusCompleted, id.RoleStaff)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("without-data service completes directly", func() {
		p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)
		res, err := s.update(p, models.StatusCompleted, id.RoleStaff)
		s.Require().NoError(err)
		s.Equal(models.StatusCompleted, res.NewStatus)
	})

	s.Run("gate binds administrators too", func() {
		p := s.seedProtocol(models.ServiceWithData, "", models.StatusLinked)
		_, err := s.update(p, models.StatusCompleted, id.RoleAdmin)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *EngineSuite) TestCitizenAuthority() {
	s.Run("cannot complete", func() {
		p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)
		_, err := s.update(p, models.StatusCompleted, id.RoleCitizen)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodePermissionDenied))
	})

	s.Run("may cancel own request", func() {
		p := s.seedProtocol(models.ServiceWithoutData, models.ModuleHealthAppointment, models.StatusLinked)

		ok, err := s.engine.CanCitizenCancel(s.ctx, p.ID)
		s.Require().NoError(err)
		s.True(ok)

		res, err := s.update(p, models.StatusCancelled, id.RoleCitizen)
		s.Require().NoError(err)
		s.Equal(models.StatusCancelled, res.NewStatus)

		state, _ := s.entities.StateOf(models.ModuleHealthAppointment, p.ID)
		s.Equal(modulestore.StateCancelled, state)

		ok, err = s.engine.CanCitizenCancel(s.ctx, p.ID)
		s.Require().NoError(err)
		s.False(ok)
	})
}

func (s *EngineSuite) TestCommentAndMetadataCarryThrough() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)

	_, err := s.engine.UpdateStatus(s.ctx, UpdateStatusInput{
		ProtocolID: p.ID,
		NewStatus:  models.StatusPending,
		Comment:    "Missing proof of residence",
		ActorID:    s.staffID,
		ActorRole:  id.RoleStaff,
		Metadata:   map[string]string{"channel": "counter"},
	})
	s.Require().NoError(err)

	entries, err := s.engine.History(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("Missing proof of residence", entries[0].Comment)
	s.Equal("counter", entries[0].Metadata["channel"])
	s.Equal(models.ActionPendingFlagged, entries[0].Action)
	s.Equal(s.staffID, entries[0].ActorID)
}

func (s *EngineSuite) TestLifecycleEventPublishedAfterTransition() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)

	_, err := s.update(p, models.StatusInProgress, id.RoleStaff)
	s.Require().NoError(err)

	s.Require().Len(s.notifier.events, 1)
	event := s.notifier.events[0]
	s.Equal(notify.EventStatusChanged, event.Kind)
	s.Equal(p.ID, event.ProtocolID)
	s.Equal(models.StatusLinked, event.OldStatus)
	s.Equal(models.StatusInProgress, event.NewStatus)
}

func (s *EngineSuite) TestValidation() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)

	s.Run("unknown protocol", func() {
		_, err := s.engine.UpdateStatus(s.ctx, UpdateStatusInput{
			ProtocolID: id.NewProtocolID(),
			NewStatus:  models.StatusInProgress,
			ActorRole:  id.RoleStaff,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("unknown status", func() {
		_, err := s.update(p, models.Status("ARCHIVED"), id.RoleStaff)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown role", func() {
		_, err := s.update(p, models.StatusInProgress, id.ActorRole("INTERN"))
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})
}

// racingStore lets a test interleave a competing write between a caller's
// load and its status write.
type racingStore struct {
	protocolstore.Store
	onLoad func()
}

func (s *racingStore) GetLoaded(ctx context.Context, protocolID id.ProtocolID) (*protocolstore.Loaded, error) {
	loaded, err := s.Store.GetLoaded(ctx, protocolID)
	if s.onLoad != nil {
		s.onLoad()
	}
	return loaded, err
}

func (s *EngineSuite) TestConcurrentTransitionRevalidatesOnCommittedState() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)

	// A staff cancellation lands between this caller's load and write. The
	// caller must re-decide on the cancelled state, not commit its stale
	// verdict over it.
	racing := &racingStore{Store: s.protocols}
	fired := false
	racing.onLoad = func() {
		if fired {
			return
		}
		fired = true
		_, err := s.update(p, models.StatusCancelled, id.RoleStaff)
		s.Require().NoError(err)
	}
	racer := New(racing, s.history, policy.Default(), dispatcher.New(s.entities))

	_, err := racer.UpdateStatus(s.ctx, UpdateStatusInput{
		ProtocolID: p.ID,
		NewStatus:  models.StatusInProgress,
		ActorID:    s.staffID,
		ActorRole:  id.RoleStaff,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))

	got, err := s.protocols.Get(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, got.Status)

	s.Run("history records only the cancellation", func() {
		entries, err := s.engine.History(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(models.StatusCancelled, entries[0].NewStatus)
	})
}

func (s *EngineSuite) TestPersistentWriteRacesSurfaceAsContention() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusLinked)

	// Every load is immediately invalidated by a status flip, so no attempt
	// ever writes. Both flip statuses permit the requested transition; the
	// failure must come from the race, not the verdict.
	racing := &racingStore{Store: s.protocols}
	cur, next := models.StatusLinked, models.StatusPending
	racing.onLoad = func() {
		s.Require().NoError(s.protocols.UpdateStatus(s.ctx, p.ID, protocolstore.StatusChange{
			ExpectedStatus: cur,
			NewStatus:      next,
			UpdatedAt:      s.now,
		}))
		cur, next = next, cur
	}
	racer := New(racing, s.history, policy.Default(), dispatcher.New(s.entities))

	_, err := racer.UpdateStatus(s.ctx, UpdateStatusInput{
		ProtocolID: p.ID,
		NewStatus:  models.StatusInProgress,
		ActorID:    s.staffID,
		ActorRole:  id.RoleStaff,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeContention))
}

func (s *EngineSuite) TestAddComment() {
	p := s.seedProtocol(models.ServiceWithoutData, "", models.StatusInProgress)

	entry, err := s.engine.AddComment(s.ctx, p.ID, "Citizen called for an update", s.staffID, id.RoleStaff)
	s.Require().NoError(err)
	s.Equal(models.ActionComment, entry.Action)
	s.Empty(entry.NewStatus)

	s.Run("does not touch status", func() {
		got, err := s.protocols.Get(s.ctx, p.ID)
		s.Require().NoError(err)
		s.Equal(models.StatusInProgress, got.Status)
	})

	s.Run("empty comment rejected", func() {
		_, err := s.engine.AddComment(s.ctx, p.ID, "  ", s.staffID, id.RoleStaff)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("unknown protocol", func() {
		_, err := s.engine.AddComment(s.ctx, id.NewProtocolID(), "hello", s.staffID, id.RoleStaff)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
