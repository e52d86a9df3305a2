package session

import "github.com/opencity/sandbox/internal/dispatcher"

func dispatcherEvent(name string) dispatcher.Event {
	return dispatcher.Event{Name: name}
}
