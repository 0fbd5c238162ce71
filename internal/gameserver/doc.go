// Package gameserver is the game backend around the action executor: the
// text command surface, the notification publisher that feeds player
// bridges, the shard tick loops for regeneration and NPCs, and the gRPC
// AbilityService.
//
// The service uses hand-registered gRPC descriptors with structpb payloads so
// clients need no generated stubs.
package gameserver
