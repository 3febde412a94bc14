package planstate

import (
	"errors"
	"sync"

	"github.com/magabrotheeeer/storeplan-sync/internal/lib/observable"
	"github.com/magabrotheeeer/storeplan-sync/internal/models"
)

// FetchRequest описывает разрешённую автоматом загрузку плана для сайта.
type FetchRequest struct {
	Site       models.Site
	generation uint64
}

// Outcome — результат обработки завершения загрузки.
type Outcome struct {
	State   State         // состояние после перехода, если Applied
	Applied bool          // false, если результат устарел и отброшен
	Next    *FetchRequest // загрузка, которую нужно выполнить следом
}

// Machine хранит единственное достоверное состояние плана текущего сайта.
// Одновременно выполняется не более одной загрузки.
// Подписчики State не должны синхронно вызывать методы Machine.
type Machine struct {
	mu         sync.Mutex
	capability CapabilityChecker
	site       *models.Site
	generation uint64
	inFlight   bool
	state      *observable.Value[State]
}

// NewMachine создаёт автомат в состоянии NotLoaded.
func NewMachine(capability CapabilityChecker) *Machine {
	if capability == nil {
		capability = WPComChecker{}
	}
	return &Machine{
		capability: capability,
		state:      observable.New(Of(NotLoaded)),
	}
}

// State возвращает текущее состояние.
func (m *Machine) State() State {
	return m.state.Get()
}

// Subscribe подписывает обработчик на изменения состояния; текущее состояние приходит сразу.
func (m *Machine) Subscribe(onChange func(State)) *observable.Subscription {
	return m.state.Subscribe(onChange)
}

// Site возвращает копию текущего сайта или nil.
func (m *Machine) Site() *models.Site {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.site == nil {
		return nil
	}
	site := *m.site
	return &site
}

// CurrentSite обрабатывает смену текущего сайта. nil переводит автомат в NotLoaded без загрузки,
// иначе выполняется Reload.
func (m *Machine) CurrentSite(site *models.Site) (FetchRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if site == nil {
		m.site = nil
		m.generation++
		m.state.Set(Of(NotLoaded))
		return FetchRequest{}, false
	}

	s := *site
	changed := m.site == nil || m.site.ID != site.ID
	m.site = &s
	if changed {
		m.generation++
		// проверяется и во время загрузки прежнего сайта
		if !m.capability.SupportsPlanAPI(s) {
			m.state.Set(Of(Unavailable))
			return FetchRequest{}, false
		}
	}
	return m.reloadLocked()
}

// Reload запрашивает загрузку плана текущего сайта. Во время Loading вызов игнорируется.
func (m *Machine) Reload() (FetchRequest, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reloadLocked()
}

func (m *Machine) reloadLocked() (FetchRequest, bool) {
	if m.state.Get().Kind == Loading {
		return FetchRequest{}, false
	}
	if m.site == nil {
		return FetchRequest{}, false
	}
	if !m.capability.SupportsPlanAPI(*m.site) {
		m.state.Set(Of(Unavailable))
		return FetchRequest{}, false
	}

	m.state.Set(Of(Loading))
	if m.inFlight {
		// устаревшая загрузка ещё выполняется, новая будет выдана из Complete
		return FetchRequest{}, false
	}
	m.inFlight = true
	return FetchRequest{Site: *m.site, generation: m.generation}, true
}

// Complete применяет результат загрузки: успех → Loaded, ErrNoCurrentPlan → Expired,
// любая другая ошибка → Failed. Результат для сменившегося сайта отбрасывается.
func (m *Machine) Complete(req FetchRequest, plan models.PlanSnapshot, err error) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.inFlight = false

	if req.generation != m.generation {
		if m.site != nil && m.state.Get().Kind == Loading {
			if !m.capability.SupportsPlanAPI(*m.site) {
				m.state.Set(Of(Unavailable))
				return Outcome{}
			}
			m.inFlight = true
			next := FetchRequest{Site: *m.site, generation: m.generation}
			return Outcome{Next: &next}
		}
		return Outcome{}
	}

	var next State
	switch {
	case err == nil:
		next = LoadedWith(plan)
	case errors.Is(err, models.ErrNoCurrentPlan):
		next = Of(Expired)
	default:
		next = Of(Failed)
	}
	m.state.Set(next)
	return Outcome{State: next, Applied: true}
}
