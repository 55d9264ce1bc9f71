package docstore

import "context"

// DaySchedule is one weekday column of the weekly schedule.
type DaySchedule struct {
	Day    string  `json:"day"`
	Events []Event `json:"events"`
}

func (s *Store) GetAllSchedule() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneEvents(s.tree.Schedule)
}

// WeekSchedule groups events Monday to Sunday. Events on an unrecognized day are left out.
func (s *Store) WeekSchedule() []DaySchedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	week := make([]DaySchedule, len(Weekdays))
	for i, day := range Weekdays {
		week[i] = DaySchedule{Day: day, Events: []Event{}}
		for _, e := range s.tree.Schedule {
			if e.Day == day {
				week[i].Events = append(week[i].Events, e)
			}
		}
		week[i].Events = cloneEvents(week[i].Events)
	}
	return week
}

func (s *Store) AddSchedule(ctx context.Context, e Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = nextID(s.tree.Schedule, func(e Event) int64 { return e.ID })
	e.TeamA = nonNil(cloneStrings(e.TeamA))
	e.TeamB = nonNil(cloneStrings(e.TeamB))
	e.Participants = cloneStrings(e.Participants)
	s.tree.Schedule = append(s.tree.Schedule, e)
	s.persist(ctx)
	return cloneEvents([]Event{e})[0]
}

func (s *Store) DeleteSchedule(ctx context.Context, id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ok bool
	s.tree.Schedule, ok = removeFirst(s.tree.Schedule, func(e Event) bool { return e.ID == id })
	if ok {
		s.persist(ctx)
	}
	return ok
}
