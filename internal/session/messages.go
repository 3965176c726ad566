// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "fmt"

// FormatError renders a failed turn the way it is shown in place of a reply.
func FormatError(err error) string {
	if err == nil {
		return ""
	}
	return "Oops, something went wrong 😅 — " + err.Error()
}

// WelcomeMessage is Jiyu's first message after onboarding.
func WelcomeMessage(name string) string {
	return fmt.Sprintf("Heyy %s! 🎉 I'm so happy to meet you! I'm Jiyu — think of me as your AI best friend. "+
		"I'm here to chat, help, brainstorm, vent with, or just hang out. No judgement, no formalities, just us.\n\n"+
		"So, what's on your mind? 💜", name)
}

var (
	morningGreetings = []string{
		"Good morning, %s! ☀️ Ready to take on the day?",
		"Morning %s! 🌅 Hope you slept well. What's the plan today?",
		"Hey %s! Rise and shine ✨ What can I help you with?",
	}
	afternoonGreetings = []string{
		"Hey %s! 👋 How's your day going so far?",
		"What's up %s! Hope you're having an awesome day 💜",
		"Heyy %s! Good to see you back 😊 What's on your mind?",
	}
	eveningGreetings = []string{
		"Hey %s! 🌙 How was your day? I'm all ears.",
		"Evening %s! 💜 Winding down or just getting started?",
		"Hey %s! Good evening ✨ What's going on?",
	}
)

// greetingsFor returns the variants for hour (0-23).
func greetingsFor(hour int) []string {
	switch {
	case hour < 12:
		return morningGreetings
	case hour >= 18:
		return eveningGreetings
	default:
		return afternoonGreetings
	}
}
