package wire

// MAC returns the sender's stable identity token.
func (p *Payload) MAC() string {
	mac, _ := p.GetText(FieldMAC)
	return mac
}

// IsControl reports whether the payload is a control frame.
func (p *Payload) IsControl() bool {
	enabled, _ := p.GetBool(FieldCommandEnabled)
	return enabled
}

// Command returns the control command of the payload, or "" when the
// payload is not a control frame.
func (p *Payload) Command() string {
	if !p.IsControl() {
		return ""
	}
	cmd, _ := p.GetText(FieldCommand)
	return cmd
}

// Argument returns the control argument text.
func (p *Payload) Argument() string {
	arg, _ := p.GetText(FieldArgument)
	return arg
}

// ArgumentData returns the secondary control argument text.
func (p *Payload) ArgumentData() string {
	arg, _ := p.GetText(FieldArgumentData)
	return arg
}

// NewControl builds a control frame carrying the sender identity,
// command and argument.
func NewControl(mac, command, argument string) *Payload {
	p := NewPayload()
	p.WriteText(FieldMAC, mac)
	p.WriteBool(FieldCommandEnabled, true)
	p.WriteText(FieldCommand, command)
	p.WriteText(FieldArgument, argument)
	return p
}
