package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskSessionFinalize = "engagement.session.finalize"

const TaskInactivitySweep = "engagement.inactivity.sweep"

type SessionFinalizePayload struct {
	SessionID string `json:"sessionId"`
}

type InactivitySweepPayload struct {
	Limit int `json:"limit"`
}

func NewSessionFinalizeTask(payload SessionFinalizePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionFinalize, data), nil
}

func ParseSessionFinalizePayload(task *asynq.Task) (SessionFinalizePayload, error) {
	var payload SessionFinalizePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return SessionFinalizePayload{}, err
	}
	return payload, nil
}

func NewInactivitySweepTask(payload InactivitySweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInactivitySweep, data), nil
}

func ParseInactivitySweepPayload(task *asynq.Task) (InactivitySweepPayload, error) {
	var payload InactivitySweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return InactivitySweepPayload{}, err
	}
	return payload, nil
}
