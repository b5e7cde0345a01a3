package output

// Collector keeps every finding and message in memory, in emission order.
type Collector struct {
	findings []Finding
	messages []string
}

// NewCollector returns an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) Emit(f Finding) error {
	c.findings = append(c.findings, f)
	return nil
}

func (c *Collector) Message(text string) error {
	c.messages = append(c.messages, text)
	return nil
}

// Findings returns all collected findings.
func (c *Collector) Findings() []Finding {
	return c.findings
}

// Messages returns all collected messages.
func (c *Collector) Messages() []string {
	return c.messages
}

// ByType returns the findings of one check, optionally narrowed to a sub-kind.
// An empty typ matches every sub-kind.
func (c *Collector) ByType(check, typ string) []Finding {
	var out []Finding
	for _, f := range c.findings {
		if f.Check != check {
			continue
		}
		if typ != "" && f.Type != typ {
			continue
		}
		out = append(out, f)
	}
	return out
}

// Reset drops everything collected so far.
func (c *Collector) Reset() {
	c.findings = nil
	c.messages = nil
}
