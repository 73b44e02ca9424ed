// Package roster builds the dinner cooking rotation.
//
// A rotation is a full round robin over n participants: every participant
// cooks together with every other participant exactly once. Each pair has a
// head chef (First) and an assistant (Second), and the head chef duty is
// spread so nobody leads more than once above anybody else.
//
// Participants are dense slot ids in [0, n). Mapping slots to residents is the
// caller's job; this package knows nothing about dates, storage or chats.
package roster
