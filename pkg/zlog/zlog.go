// Package zlog is the producer-facing surface of the log pipeline: the
// hook set a bouncer calls from its event loop. Every hook formats one
// line, stamps it and enqueues it; none of them block or return errors
// (fire and forget — database health is invisible here).
package zlog

import (
	"time"

	"zlogsql/internal/events"
	"zlogsql/internal/pipeline"
	"zlogsql/internal/storage"
)

// StatusBuffer collects events that do not belong to a channel or query.
const StatusBuffer = "Status"

// Module adapts host chat events into queued log records.
type Module struct {
	queue *pipeline.Queue
	now   func() time.Time
}

func New(queue *pipeline.Queue) *Module {
	return &Module{queue: queue, now: time.Now}
}

// Put enqueues one raw log line. All hooks funnel through here.
func (m *Module) Put(network, buffer, nick, line string) {
	if buffer == "" {
		buffer = StatusBuffer
	}
	m.queue.Enqueue(storage.Record{
		Network: network,
		Buffer:  buffer,
		Nick:    nick,
		Time:    m.now(),
		Line:    line,
	})
}

// ---- Messages ----

func (m *Module) OnChanMsg(network, channel, nick, text string) {
	m.Put(network, channel, nick, events.Msg(nick, text))
}

func (m *Module) OnPrivMsg(network, nick, text string) {
	m.Put(network, nick, nick, events.Msg(nick, text))
}

// OnUserMsg logs our own outgoing message. curNick is the nick we are
// currently using on the network.
func (m *Module) OnUserMsg(network, target, curNick, text string) {
	m.Put(network, target, curNick, events.Msg(curNick, text))
}

// ---- Actions ----

func (m *Module) OnChanAction(network, channel, nick, text string) {
	m.Put(network, channel, nick, events.Action(nick, text))
}

func (m *Module) OnPrivAction(network, nick, text string) {
	m.Put(network, nick, nick, events.Action(nick, text))
}

func (m *Module) OnUserAction(network, target, curNick, text string) {
	m.Put(network, target, curNick, events.Action(curNick, text))
}

// ---- Notices ----

func (m *Module) OnChanNotice(network, channel, nick, text string) {
	m.Put(network, channel, nick, events.Notice(nick, text))
}

func (m *Module) OnPrivNotice(network, nick, text string) {
	m.Put(network, nick, nick, events.Notice(nick, text))
}

func (m *Module) OnUserNotice(network, target, curNick, text string) {
	m.Put(network, target, curNick, events.Notice(curNick, text))
}

// ---- Channel membership ----

func (m *Module) OnJoin(network, channel, nick, ident, host string) {
	m.Put(network, channel, nick, events.Join(nick, ident, host))
}

func (m *Module) OnPart(network, channel, nick, ident, host, reason string) {
	m.Put(network, channel, nick, events.Part(nick, ident, host, reason))
}

// OnQuit fans the quit out to every channel the nick shared with us.
func (m *Module) OnQuit(network, nick, ident, host, reason string, channels []string) {
	line := events.Quit(nick, ident, host, reason)
	for _, ch := range channels {
		m.Put(network, ch, nick, line)
	}
}

func (m *Module) OnKick(network, channel, opNick, kickedNick, reason string) {
	m.Put(network, channel, opNick, events.Kick(opNick, kickedNick, reason))
}

// OnNickChange fans the rename out to every shared channel.
func (m *Module) OnNickChange(network, oldNick, newNick string, channels []string) {
	line := events.NickChange(oldNick, newNick)
	for _, ch := range channels {
		m.Put(network, ch, oldNick, line)
	}
}

func (m *Module) OnTopic(network, channel, nick, topic string) {
	m.Put(network, channel, nick, events.Topic(nick, topic))
}

func (m *Module) OnRawMode(network, channel, opNick, modes, args string) {
	m.Put(network, channel, opNick, events.Mode(opNick, modes, args))
}

// ---- Connection status ----

func (m *Module) OnIRCConnected(network, server string) {
	m.Put(network, StatusBuffer, "", events.Connected(server))
}

func (m *Module) OnIRCDisconnected(network, server string) {
	m.Put(network, StatusBuffer, "", events.Disconnected(server))
}

func (m *Module) OnBroadcast(message string) {
	m.Put("", StatusBuffer, "", events.Broadcast(message))
}
