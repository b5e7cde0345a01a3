// Copyright 2024 icatcheck Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import "github.com/uptrace/bun"

// ICAT table names. Rule tables and queries may only reference these.
const (
	TableCollections = "r_coll_main"
	TableDataObjects = "r_data_main"
	TableResources   = "r_resc_main"
	TableUsers       = "r_user_main"
	TableZones       = "r_zone_main"
	TableAccess      = "r_objt_access"
	TableMetaMap     = "r_objt_metamap"
	TableMeta        = "r_meta_main"
	TableQuotas      = "r_quota_main"
	TableQuotaUsage  = "r_quota_usage"
	TablePasswords   = "r_user_password"
	TableRules       = "r_rule_main"
)

// FilesystemResourceTypes are the resource types whose resc_def_path is a
// vault directory on a local filesystem. Older catalogs spell it with spaces.
var FilesystemResourceTypes = []string{"unixfilesystem", "unix file system"}

// Bun models for the ICAT tables this tool reads. Only the columns used by
// the checks are mapped. Timestamps are kept as text because that is how
// the catalog stores them.

// CollectionModel represents r_coll_main
type CollectionModel struct {
	bun.BaseModel `bun:"table:r_coll_main,alias:c"`

	CollID         int64  `bun:"coll_id"`
	ParentCollName string `bun:"parent_coll_name"`
	CollName       string `bun:"coll_name"`
	CollOwnerName  string `bun:"coll_owner_name"`
	CreateTs       string `bun:"create_ts"`
	ModifyTs       string `bun:"modify_ts"`
}

// DataObjectModel represents one replica row of r_data_main.
// Replicas of one logical object share DataID, CollID and DataName.
type DataObjectModel struct {
	bun.BaseModel `bun:"table:r_data_main,alias:d"`

	DataID      int64  `bun:"data_id"`
	CollID      int64  `bun:"coll_id"`
	DataName    string `bun:"data_name"`
	DataReplNum int64  `bun:"data_repl_num"`
	RescID      int64  `bun:"resc_id"`
	DataPath    string `bun:"data_path"`
	DataSize    int64  `bun:"data_size"`
	CreateTs    string `bun:"create_ts"`
	ModifyTs    string `bun:"modify_ts"`
}

// ResourceModel represents r_resc_main.
// RescParent is text; an empty string marks a root resource.
type ResourceModel struct {
	bun.BaseModel `bun:"table:r_resc_main,alias:r"`

	RescID       int64  `bun:"resc_id"`
	RescName     string `bun:"resc_name"`
	ZoneName     string `bun:"zone_name"`
	RescTypeName string `bun:"resc_type_name"`
	RescNet      string `bun:"resc_net"` // host serving the resource
	RescDefPath  string `bun:"resc_def_path"`
	RescParent   string `bun:"resc_parent"`
	CreateTs     string `bun:"create_ts"`
	ModifyTs     string `bun:"modify_ts"`
}

// UserModel represents r_user_main
type UserModel struct {
	bun.BaseModel `bun:"table:r_user_main,alias:u"`

	UserID       int64  `bun:"user_id"`
	UserName     string `bun:"user_name"`
	UserTypeName string `bun:"user_type_name"`
	ZoneName     string `bun:"zone_name"`
	CreateTs     string `bun:"create_ts"`
	ModifyTs     string `bun:"modify_ts"`
}

// ZoneModel represents r_zone_main
type ZoneModel struct {
	bun.BaseModel `bun:"table:r_zone_main,alias:z"`

	ZoneID       int64  `bun:"zone_id"`
	ZoneName     string `bun:"zone_name"`
	ZoneTypeName string `bun:"zone_type_name"`
	CreateTs     string `bun:"create_ts"`
	ModifyTs     string `bun:"modify_ts"`
}

// AccessModel represents r_objt_access
type AccessModel struct {
	bun.BaseModel `bun:"table:r_objt_access,alias:a"`

	ObjectID     int64  `bun:"object_id"`
	UserID       int64  `bun:"user_id"`
	AccessTypeID int64  `bun:"access_type_id"`
	CreateTs     string `bun:"create_ts"`
	ModifyTs     string `bun:"modify_ts"`
}

// MetaMapModel represents r_objt_metamap
type MetaMapModel struct {
	bun.BaseModel `bun:"table:r_objt_metamap,alias:mm"`

	ObjectID int64  `bun:"object_id"`
	MetaID   int64  `bun:"meta_id"`
	CreateTs string `bun:"create_ts"`
	ModifyTs string `bun:"modify_ts"`
}

// MetaModel represents r_meta_main
type MetaModel struct {
	bun.BaseModel `bun:"table:r_meta_main,alias:m"`

	MetaID        int64  `bun:"meta_id"`
	MetaAttrName  string `bun:"meta_attr_name"`
	MetaAttrValue string `bun:"meta_attr_value"`
	CreateTs      string `bun:"create_ts"`
	ModifyTs      string `bun:"modify_ts"`
}

// QuotaModel represents r_quota_main
type QuotaModel struct {
	bun.BaseModel `bun:"table:r_quota_main,alias:q"`

	UserID     int64  `bun:"user_id"`
	RescID     int64  `bun:"resc_id"`
	QuotaLimit int64  `bun:"quota_limit"`
	QuotaOver  int64  `bun:"quota_over"`
	ModifyTs   string `bun:"modify_ts"`
}

// QuotaUsageModel represents r_quota_usage
type QuotaUsageModel struct {
	bun.BaseModel `bun:"table:r_quota_usage,alias:qu"`

	UserID     int64  `bun:"user_id"`
	RescID     int64  `bun:"resc_id"`
	QuotaUsage int64  `bun:"quota_usage"`
	ModifyTs   string `bun:"modify_ts"`
}

// PasswordModel represents r_user_password
type PasswordModel struct {
	bun.BaseModel `bun:"table:r_user_password,alias:p"`

	UserID       int64  `bun:"user_id"`
	RcatPassword string `bun:"rcat_password"`
	PassExpiryTs string `bun:"pass_expiry_ts"`
	CreateTs     string `bun:"create_ts"`
	ModifyTs     string `bun:"modify_ts"`
}

// RuleModel represents r_rule_main
type RuleModel struct {
	bun.BaseModel `bun:"table:r_rule_main,alias:ru"`

	RuleID       int64  `bun:"rule_id"`
	RuleBaseName string `bun:"rule_base_name"`
	RuleName     string `bun:"rule_name"`
	CreateTs     string `bun:"create_ts"`
	ModifyTs     string `bun:"modify_ts"`
}
