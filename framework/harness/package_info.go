// Package harness manages the lifecycle of the server under test: its configuration
// (ProcessConfig), the capture of its output (LogDrain), and the process itself
// (ProcessSupervisor).
package harness
