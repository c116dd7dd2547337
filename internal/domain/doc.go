// Package domain contains the core entities of the job engine: jobs with
// their status state machine, and the learning entities (goals, messages,
// hierarchies, nodes, cards) that job handlers read and write.
//
// Domain types validate their own invariants and have no dependencies on
// storage or transport.
package domain
