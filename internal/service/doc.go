// Package service contains the application use cases behind the HTTP API.
// It orchestrates the task and preset stores, the scraping worker client
// and change notifications to the polling engine.
//
// Key components:
//
// 1. TaskService:
//   - Creates, lists and deletes scraping tasks
//   - Submits tasks to the remote worker and records the submission outcome
//   - Exports the results of completed tasks
//
// 2. PresetService:
//   - Manages saved classification criteria and the active selection
//
// 3. Error Handling:
//   - Store sentinels are translated to service sentinels (ErrTaskNotFound, ...)
//   - Unexpected failures are wrapped in *ServiceError
//
// Every task mutation emits an events.TaskChangedEvent so the polling
// scheduler can resync without waiting for its periodic pass.
package service
