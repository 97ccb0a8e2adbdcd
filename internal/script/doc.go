// Package script holds the authored engagement script: the mentor, the
// persona roster and the day-by-day table of scripted messages.
//
// A script is static configuration. It is parsed once per process, validated,
// and never mutated afterwards; every other component reads it.
//
// # Document Format
//
// Scripts are authored in YAML or CUE with the same shape:
//
//	mentor:
//	  displayName: Coach Maya
//	  avatarRef: avatars/maya.png
//	personas:
//	  sam:
//	    displayName: Sam
//	    personalityClass: leader
//	days:
//	  - dayOffset: 0
//	    messages:
//	      - id: d0-welcome
//	        senderKey: mentor
//	        content: "Welcome, {firstName}!"
//	        delayMinutesFromDayStart: 0
//
// The order of the personas mapping is significant: a persona's position in
// the roster feeds its stable progress offset. YAML mapping order and CUE
// field declaration order are both preserved.
//
// Optional sections welcome, replies and fallback carry authored lines for
// the scripted reply substitute and the deterministic fallback reply.
package script
