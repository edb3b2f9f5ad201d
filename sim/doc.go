// Package sim provides the decision-process core of the cache simulator.
//
// # Reading Guide
//
// Start with these files to understand the control loop:
//   - engine.go: the contract a simulation engine must satisfy (Backend, Engine, StepResult)
//   - session.go: Session, the exclusive owner of one engine handle
//   - env.go: ActiveEnv and PassiveEnv, the Reset/Step/Close loops
//
// # Architecture
//
// The sim package defines interfaces and the orchestration core; implementations
// live in sub-packages:
//   - sim/emu/: in-process reference engine (trace slicing, slot cache, structural features)
//   - sim/embedding/: online embedding table used for feature augmentation
//   - sim/observer/: lifecycle observers (hit-rate reporting, run ids, Prometheus metrics)
//   - sim/policy/: baseline agents that turn observations into action masks
//   - sim/trace/: request-trace file reading and summaries
//
// # Key Interfaces
//
//   - Engine: tick, query and mutate one simulated cache
//   - EmbeddingSource: learned per-content features fused with structural ones
//   - Observer: lifecycle callbacks fanned out by a Registry
//
// The core is single-threaded. A Step call runs the engine on the caller's
// goroutine until a decision point, a finished trace, or the tick guard.
package sim
