package docstore

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

// seedDocument mirrors seed.yaml. Profile and activity timestamps are relative
// and only become absolute when the seed is stamped.
type seedDocument struct {
	News     []News        `yaml:"news"`
	Schedule []Event       `yaml:"schedule"`
	Rules    []Rule        `yaml:"rules"`
	Teams    []Team        `yaml:"teams"`
	FAQ      []FAQEntry    `yaml:"faq"`
	Profiles []seedProfile `yaml:"profiles"`
}

type seedProfile struct {
	Profile    `yaml:",inline"`
	Activities []seedActivity `yaml:"activities"`
}

type seedActivity struct {
	Activity `yaml:",inline"`
	Ago      time.Duration `yaml:"ago"`
}

var seedData = mustParseSeed(seedYAML)

func mustParseSeed(data []byte) seedDocument {
	var doc seedDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		panic(fmt.Sprintf("docstore: parse seed: %v", err))
	}
	return doc
}

// Seed builds the sample tree a fresh or reset store starts from.
func Seed(now time.Time, d Defaults) Tree {
	now = now.UTC()
	t := Tree{
		News:     cloneNews(seedData.News),
		Schedule: cloneEvents(seedData.Schedule),
		Rules:    append([]Rule{}, seedData.Rules...),
		Teams:    cloneTeams(seedData.Teams),
		FAQ:      cloneFAQ(seedData.FAQ),
		Users:    []User{cloneUser(d.Admin)},
		Profiles: make([]Profile, 0, len(seedData.Profiles)),
		Settings: d.Settings.clone(),
	}
	for i := range t.News {
		t.News[i].Date = now.Format(dateLayout)
	}
	for _, sp := range seedData.Profiles {
		p := cloneProfile(sp.Profile)
		p.CreatedAt = now
		p.Activities = make([]Activity, 0, len(sp.Activities))
		for _, sa := range sp.Activities {
			a := sa.Activity
			a.Time = now.Add(-sa.Ago)
			p.Activities = append(p.Activities, a)
		}
		t.Profiles = append(t.Profiles, p)
	}
	fillLists(&t)
	return t
}
