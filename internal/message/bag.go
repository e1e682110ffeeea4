package message

import "slices"

// Bag is an ordered, immutable sequence of messages.
// Appending produces a new bag; the receiver is never modified.
type Bag struct {
	messages []Message
}

// NewBag builds a bag from messages in conversation order.
func NewBag(msgs ...Message) Bag {
	return Bag{messages: slices.Clone(msgs)}
}

// With returns a new bag with msgs appended.
func (b Bag) With(msgs ...Message) Bag {
	out := make([]Message, 0, len(b.messages)+len(msgs))
	out = append(out, b.messages...)
	out = append(out, msgs...)
	return Bag{messages: out}
}

// Merge returns a new bag with the messages of other appended.
func (b Bag) Merge(other Bag) Bag {
	return b.With(other.messages...)
}

// Messages returns a copy of the messages.
func (b Bag) Messages() []Message {
	return slices.Clone(b.messages)
}

// Len returns the number of messages.
func (b Bag) Len() int { return len(b.messages) }

// Last returns the final message.
func (b Bag) Last() (Message, bool) {
	if len(b.messages) == 0 {
		return nil, false
	}
	return b.messages[len(b.messages)-1], true
}

// System returns the first system message.
func (b Bag) System() (SystemMessage, bool) {
	for _, m := range b.messages {
		if s, ok := m.(SystemMessage); ok {
			return s, true
		}
	}
	return SystemMessage{}, false
}

// WithoutSystem returns a new bag with every system message removed.
func (b Bag) WithoutSystem() Bag {
	out := make([]Message, 0, len(b.messages))
	for _, m := range b.messages {
		if _, ok := m.(SystemMessage); !ok {
			out = append(out, m)
		}
	}
	return Bag{messages: out}
}

// WithSystem returns a new bag whose only system message is s, placed first.
func (b Bag) WithSystem(s SystemMessage) Bag {
	rest := b.WithoutSystem().messages
	out := make([]Message, 0, len(rest)+1)
	out = append(out, s)
	out = append(out, rest...)
	return Bag{messages: out}
}

// ContentKinds returns the distinct content kinds used by user messages.
func (b Bag) ContentKinds() []Kind {
	var kinds []Kind
	for _, m := range b.messages {
		u, ok := m.(UserMessage)
		if !ok {
			continue
		}
		for _, p := range u.Parts {
			if !slices.Contains(kinds, p.Kind()) {
				kinds = append(kinds, p.Kind())
			}
		}
	}
	return kinds
}

// Tail returns a new bag holding at most the last n messages, keeping a
// leading system message when one exists.
func (b Bag) Tail(n int) Bag {
	if n <= 0 || len(b.messages) <= n {
		return NewBag(b.messages...)
	}
	sys, hasSys := b.System()
	rest := b.WithoutSystem().messages
	if len(rest) > n {
		rest = rest[len(rest)-n:]
	}
	if !hasSys {
		return NewBag(rest...)
	}
	return NewBag(rest...).WithSystem(sys)
}
