// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package models defines typed views of Orchestrator API entities.
//
// Field names follow the API's PascalCase JSON keys. Unknown fields are
// dropped on decode; absent fields stay at their zero value and are
// omitted on re-encode. Timestamps are kept as strings because the
// Orchestrator emits several ISO 8601 variants, not all of which parse
// as RFC 3339.
package models

import "encoding/json"

// Job states
const (
	JobStatePending     = "Pending"
	JobStateRunning     = "Running"
	JobStateStopping    = "Stopping"
	JobStateTerminating = "Terminating"
	JobStateFaulted     = "Faulted"
	JobStateSuccessful  = "Successful"
	JobStateStopped     = "Stopped"
	JobStateSuspended   = "Suspended"
	JobStateResumed     = "Resumed"
)

// TerminalJobStates are the states wait-style polling stops on
var TerminalJobStates = map[string]bool{
	JobStateSuccessful:  true,
	JobStateFaulted:     true,
	JobStateStopped:     true,
	JobStateTerminating: true,
}

// Queue item statuses
const (
	QueueItemStatusNew        = "New"
	QueueItemStatusInProgress = "InProgress"
	QueueItemStatusFailed     = "Failed"
	QueueItemStatusSuccessful = "Successful"
	QueueItemStatusAbandoned  = "Abandoned"
	QueueItemStatusRetried    = "Retried"
	QueueItemStatusDeleted    = "Deleted"
)

// Job allocation strategies
const (
	StrategyAll        = "All"
	StrategySpecific   = "Specific"
	StrategyJobsCount  = "JobsCount"
	StrategyRobotCount = "RobotCount"
)

// Stop strategies
const (
	StopStrategySoftStop = "SoftStop"
	StopStrategyKill     = "Kill"
)

// Asset value types
const (
	AssetTypeText       = "Text"
	AssetTypeInteger    = "Integer"
	AssetTypeBool       = "Bool"
	AssetTypeCredential = "Credential"
)

type Job struct {
	ID              int64  `json:"Id,omitempty"`
	Key             string `json:"Key,omitempty"`
	ReleaseName     string `json:"ReleaseName,omitempty"`
	ReleaseKey      string `json:"ReleaseKey,omitempty"`
	State           string `json:"State,omitempty"`
	Source          string `json:"Source,omitempty"`
	StartTime       string `json:"StartTime,omitempty"`
	EndTime         string `json:"EndTime,omitempty"`
	CreationTime    string `json:"CreationTime,omitempty"`
	HostMachineName string `json:"HostMachineName,omitempty"`
	Info            string `json:"Info,omitempty"`
	InputArguments  string `json:"InputArguments,omitempty"`
	OutputArguments string `json:"OutputArguments,omitempty"`
	FolderID        int64  `json:"OrganizationUnitId,omitempty"`
	FolderName      string `json:"OrganizationUnitFullyQualifiedName,omitempty"`
}

type Queue struct {
	ID                         int64  `json:"Id,omitempty"`
	Name                       string `json:"Name,omitempty"`
	Description                string `json:"Description,omitempty"`
	MaxNumberOfRetries         int    `json:"MaxNumberOfRetries,omitempty"`
	AcceptAutomaticallyRetry   bool   `json:"AcceptAutomaticallyRetry,omitempty"`
	EnforceUniqueReference     bool   `json:"EnforceUniqueReference,omitempty"`
	CreationTime               string `json:"CreationTime,omitempty"`
	SuccessfulTransactionCount int64  `json:"SuccessfulTransactionCount,omitempty"`
	FailedTransactionCount     int64  `json:"FailedTransactionCount,omitempty"`
	InProgressTransactionCount int64  `json:"InProgressTransactionCount,omitempty"`
}

type QueueItem struct {
	ID                  int64                  `json:"Id,omitempty"`
	QueueDefinitionID   int64                  `json:"QueueDefinitionId,omitempty"`
	QueueDefinitionName string                 `json:"QueueDefinitionName,omitempty"`
	Status              string                 `json:"Status,omitempty"`
	ReviewStatus        string                 `json:"ReviewStatus,omitempty"`
	Priority            string                 `json:"Priority,omitempty"`
	Reference           string                 `json:"Reference,omitempty"`
	DeferDate           string                 `json:"DeferDate,omitempty"`
	DueDate             string                 `json:"DueDate,omitempty"`
	CreationTime        string                 `json:"CreationTime,omitempty"`
	StartTime           string                 `json:"StartTime,omitempty"`
	EndTime             string                 `json:"EndTime,omitempty"`
	RetryNumber         int                    `json:"RetryNumber,omitempty"`
	SpecificContent     map[string]interface{} `json:"SpecificContent,omitempty"`
	Output              map[string]interface{} `json:"Output,omitempty"`
	ExceptionType       string                 `json:"ProcessingExceptionType,omitempty"`
	ExceptionReason     string                 `json:"ProcessingExceptionReason,omitempty"`
}

type Robot struct {
	ID                   int64  `json:"Id,omitempty"`
	Name                 string `json:"Name,omitempty"`
	MachineName          string `json:"MachineName,omitempty"`
	MachineID            int64  `json:"MachineId,omitempty"`
	Type                 string `json:"Type,omitempty"`
	Username             string `json:"Username,omitempty"`
	Description          string `json:"Description,omitempty"`
	Version              string `json:"Version,omitempty"`
	LastModificationTime string `json:"LastModificationTime,omitempty"`
	ProvisionedLicenses  int    `json:"ProvisionedLicenses,omitempty"`
}

type RobotSession struct {
	ID              int64  `json:"Id,omitempty"`
	RobotID         int64  `json:"RobotId,omitempty"`
	MachineID       int64  `json:"MachineId,omitempty"`
	MachineName     string `json:"MachineName,omitempty"`
	HostMachineName string `json:"HostMachineName,omitempty"`
	State           string `json:"State,omitempty"`
	ReportingTime   string `json:"ReportingTime,omitempty"`
	IsConnected     bool   `json:"IsConnected,omitempty"`
}

type Machine struct {
	ID                 int64  `json:"Id,omitempty"`
	Key                string `json:"Key,omitempty"`
	Name               string `json:"Name,omitempty"`
	Type               string `json:"Type,omitempty"`
	Description        string `json:"Description,omitempty"`
	NonProductionSlots int    `json:"NonProductionSlots,omitempty"`
	UnattendedSlots    int    `json:"UnattendedSlots,omitempty"`
	HeadlessSlots      int    `json:"HeadlessSlots,omitempty"`
	TestingSlots       int    `json:"TestingSlots,omitempty"`
}

// Asset deliberately has no CredentialPassword field; the API never
// returns it
type Asset struct {
	ID                 int64  `json:"Id,omitempty"`
	Name               string `json:"Name,omitempty"`
	CanonicalName      string `json:"CanonicalName,omitempty"`
	ValueType          string `json:"ValueType,omitempty"`
	ValueScope         string `json:"ValueScope,omitempty"`
	StringValue        string `json:"StringValue,omitempty"`
	BoolValue          bool   `json:"BoolValue,omitempty"`
	IntValue           int64  `json:"IntValue,omitempty"`
	CredentialUsername string `json:"CredentialUsername,omitempty"`
	Description        string `json:"Description,omitempty"`
	FolderID           int64  `json:"OrganizationUnitId,omitempty"`
}

type Release struct {
	ID              int64  `json:"Id,omitempty"`
	Key             string `json:"Key,omitempty"`
	ProcessKey      string `json:"ProcessKey,omitempty"`
	ProcessVersion  string `json:"ProcessVersion,omitempty"`
	IsLatestVersion bool   `json:"IsLatestVersion,omitempty"`
	Description     string `json:"Description,omitempty"`
	Name            string `json:"Name,omitempty"`
	EntryPointPath  string `json:"EntryPointPath,omitempty"`
	InputArguments  string `json:"InputArguments,omitempty"`
	JobPriority     string `json:"JobPriority,omitempty"`
	EnvironmentName string `json:"EnvironmentName,omitempty"`
}

type ProcessSchedule struct {
	ID             int64  `json:"Id,omitempty"`
	Name           string `json:"Name,omitempty"`
	ReleaseName    string `json:"ReleaseName,omitempty"`
	ReleaseID      int64  `json:"ReleaseId,omitempty"`
	Enabled        bool   `json:"Enabled,omitempty"`
	TimeZoneID     string `json:"TimeZoneId,omitempty"`
	CronExpression string `json:"CronExpression,omitempty"`
	StartAt        string `json:"StartAt,omitempty"`
	NextExecution  string `json:"NextExecution,omitempty"`
	Strategy       string `json:"Strategy,omitempty"`
	StopStrategy   string `json:"StopStrategy,omitempty"`
}

type AuditLog struct {
	ID            int64  `json:"Id,omitempty"`
	UserName      string `json:"UserName,omitempty"`
	UserID        int64  `json:"UserId,omitempty"`
	Action        string `json:"Action,omitempty"`
	EntityType    string `json:"EntityType,omitempty"`
	CreationTime  string `json:"CreationTime,omitempty"`
	ExecutionTime string `json:"ExecutionTime,omitempty"`
	Component     string `json:"Component,omitempty"`
	ServiceName   string `json:"ServiceName,omitempty"`
	Operation     string `json:"Operation,omitempty"`
}

type RobotLog struct {
	ID              int64  `json:"Id,omitempty"`
	Level           string `json:"Level,omitempty"`
	WindowsIdentity string `json:"WindowsIdentity,omitempty"`
	ProcessName     string `json:"ProcessName,omitempty"`
	TimeStamp       string `json:"TimeStamp,omitempty"`
	Message         string `json:"Message,omitempty"`
	JobKey          string `json:"JobKey,omitempty"`
	RawMessage      string `json:"RawMessage,omitempty"`
	RobotName       string `json:"RobotName,omitempty"`
	MachineName     string `json:"MachineName,omitempty"`
}

type Folder struct {
	ID                 int64  `json:"Id,omitempty"`
	Key                string `json:"Key,omitempty"`
	DisplayName        string `json:"DisplayName,omitempty"`
	FullyQualifiedName string `json:"FullyQualifiedName,omitempty"`
	ParentID           int64  `json:"ParentId,omitempty"`
	Description        string `json:"Description,omitempty"`
	ProvisioningType   string `json:"ProvisioningType,omitempty"`
	PermissionModel    string `json:"PermissionModel,omitempty"`
}

type Webhook struct {
	ID                   int64                    `json:"Id,omitempty"`
	Name                 string                   `json:"Name,omitempty"`
	URL                  string                   `json:"Url,omitempty"`
	Enabled              bool                     `json:"Enabled,omitempty"`
	Secret               string                   `json:"Secret,omitempty"`
	AllowInsecureSsl     bool                     `json:"AllowInsecureSsl,omitempty"`
	SubscribeToAllEvents bool                     `json:"SubscribeToAllEvents,omitempty"`
	Events               []map[string]interface{} `json:"Events,omitempty"`
	CreationTime         string                   `json:"CreationTime,omitempty"`
}

// Decode maps a raw API document onto a typed model, dropping unknown
// fields
func Decode(doc map[string]interface{}, out interface{}) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

// DecodeSlice maps a list of raw API documents onto typed models
func DecodeSlice[T any](docs []map[string]interface{}) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var item T
		if err := Decode(doc, &item); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
