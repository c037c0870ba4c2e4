package display

// Sink is anything that can show display updates.
type Sink interface {
	SetText(text string)
	SetLamp(on bool)
	Alert(msg string)
}

// Fanout forwards every update to each sink in order.
type Fanout []Sink

func (f Fanout) SetText(text string) {
	for _, s := range f {
		s.SetText(text)
	}
}

func (f Fanout) SetLamp(on bool) {
	for _, s := range f {
		s.SetLamp(on)
	}
}

func (f Fanout) Alert(msg string) {
	for _, s := range f {
		s.Alert(msg)
	}
}
