// Package events renders IRC events into the log line text stored in the
// database. The formats match the classic ZNC log style so existing
// tooling keeps working.
package events

func Msg(nick, text string) string    { return "<" + nick + "> " + text }
func Action(nick, text string) string { return "* " + nick + " " + text }
func Notice(nick, text string) string { return "-" + nick + "- " + text }

func Join(nick, ident, host string) string {
	return "*** Joins: " + nick + " (" + ident + "@" + host + ")"
}

func Part(nick, ident, host, reason string) string {
	return "*** Parts: " + nick + " (" + ident + "@" + host + ") (" + reason + ")"
}

func Quit(nick, ident, host, reason string) string {
	return "*** Quits: " + nick + " (" + ident + "@" + host + ") (" + reason + ")"
}

func Kick(opNick, kickedNick, reason string) string {
	return "*** " + kickedNick + " was kicked by " + opNick + " (" + reason + ")"
}

func NickChange(oldNick, newNick string) string {
	return "*** " + oldNick + " is now known as " + newNick
}

func Topic(nick, topic string) string {
	return "*** " + nick + ` changes topic to "` + topic + `"`
}

// Mode formats a channel mode change. opNick may be empty when the server
// itself set the mode.
func Mode(opNick, modes, args string) string {
	if opNick == "" {
		opNick = "Server"
	}
	return "*** " + opNick + " sets mode: " + modes + " " + args
}

func Connected(server string) string    { return "Connected to IRC (" + server + ")" }
func Disconnected(server string) string { return "Disconnected from IRC (" + server + ")" }
func Broadcast(message string) string   { return "Broadcast: " + message }
