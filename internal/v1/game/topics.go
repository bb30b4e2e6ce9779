package game

import "math/rand"

// Discussion topics sampled at round start. Deliberately mundane: the game
// works best when everyone can have an opinion.
var Topics = []string{
	"What's the most overrated food everyone pretends to like?",
	"If you could instantly master one skill, what would it be?",
	"What's a movie everyone loves that you just don't get?",
	"Is a hot dog a sandwich?",
	"What's the best age to be, and why?",
	"Would you rather live without music or without movies?",
	"What's something small that instantly improves your day?",
	"If animals could talk, which species would be the rudest?",
	"What's the worst piece of advice you've ever heard?",
	"Cities or countryside, where would you rather live forever?",
	"What habit do people have that you will never understand?",
	"What's the most useless product you've ever seen for sale?",
	"Would you rather always be ten minutes late or an hour early?",
	"What food combination do you love that others find weird?",
	"If you had to eat one meal every day forever, what would it be?",
}

// Agent personalities assigned at room creation. Kept short so the prompt
// carries flavor without dominating the instruction.
var Personalities = []string{
	"casual and a bit sarcastic, uses short sentences",
	"enthusiastic and friendly, asks lots of questions",
	"dry and skeptical, plays devil's advocate",
	"easygoing and agreeable, often builds on what others said",
	"opinionated and blunt, but good-humored about it",
	"thoughtful and a little nerdy, likes odd facts",
	"playful and teasing, makes light jokes",
	"quietly observant, chimes in with short pointed takes",
	"warm and encouraging, tries to include everyone",
	"slightly distracted, tangents into personal anecdotes",
}

// RandomTopic samples a discussion topic.
func RandomTopic(rng *rand.Rand) string {
	return Topics[rng.Intn(len(Topics))]
}

// RandomPersonality samples an agent personality descriptor.
func RandomPersonality(rng *rand.Rand) string {
	return Personalities[rng.Intn(len(Personalities))]
}
