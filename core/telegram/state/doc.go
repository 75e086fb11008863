// Package state keeps ephemeral per-chat conversation sessions in process
// memory. Sessions are keyed by chat id and never expire; callers clear them
// explicitly. Locker serializes handling of events that belong to one chat
// while leaving other chats independent.
package state
