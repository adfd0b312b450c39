package config

import (
	"reflect"
	"slices"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// is reported through RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// ManagersChanged is set when the cascade, the default message or the
	// NLU settings changed. The connector's manager can be rebuilt and
	// swapped.
	ManagersChanged bool

	// DefinitionsChanged is set by [Watcher] when a bot definition file
	// changed on disk. It implies ManagersChanged.
	DefinitionsChanged bool
	ManagerChanges     []ManagerDiff

	// RestartRequired lists top-level sections that changed but are only
	// read at startup.
	RestartRequired []string
}

// ManagerDiff describes what changed for a single cascade member.
type ManagerDiff struct {
	Name    string
	Added   bool
	Removed bool
	Changed bool
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}

	if old.Managers.DefaultMessage != new.Managers.DefaultMessage || !reflect.DeepEqual(old.NLU, new.NLU) {
		d.ManagersChanged = true
	}
	if !slices.EqualFunc(old.Managers.Cascade, new.Managers.Cascade, func(a, b ManagerConfig) bool {
		return a.Name == b.Name
	}) {
		// Order is part of the cascade.
		d.ManagersChanged = true
	}

	oldManagers := make(map[string]*ManagerConfig, len(old.Managers.Cascade))
	for i := range old.Managers.Cascade {
		oldManagers[old.Managers.Cascade[i].Name] = &old.Managers.Cascade[i]
	}
	newManagers := make(map[string]*ManagerConfig, len(new.Managers.Cascade))
	for i := range new.Managers.Cascade {
		newManagers[new.Managers.Cascade[i].Name] = &new.Managers.Cascade[i]
	}

	for _, m := range old.Managers.Cascade {
		newM, exists := newManagers[m.Name]
		if !exists {
			d.ManagerChanges = append(d.ManagerChanges, ManagerDiff{Name: m.Name, Removed: true})
			d.ManagersChanged = true
			continue
		}
		if !reflect.DeepEqual(*oldManagers[m.Name], *newM) {
			d.ManagerChanges = append(d.ManagerChanges, ManagerDiff{Name: m.Name, Changed: true})
			d.ManagersChanged = true
		}
	}
	for _, m := range new.Managers.Cascade {
		if _, exists := oldManagers[m.Name]; !exists {
			d.ManagerChanges = append(d.ManagerChanges, ManagerDiff{Name: m.Name, Added: true})
			d.ManagersChanged = true
		}
	}

	sections := []struct {
		name     string
		old, new any
	}{
		{"server", old.Server, new.Server},
		{"log", withoutLevel(old.Log), withoutLevel(new.Log)},
		{"storage", old.Storage, new.Storage},
		{"message_log", old.MessageLog, new.MessageLog},
		{"providers", old.Providers, new.Providers},
		{"adapters", old.Adapters, new.Adapters},
	}
	for _, s := range sections {
		if !reflect.DeepEqual(s.old, s.new) {
			d.RestartRequired = append(d.RestartRequired, s.name)
		}
	}
	return d
}

func withoutLevel(l LogConfig) LogConfig {
	l.Level = ""
	return l
}
