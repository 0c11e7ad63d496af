// Package racecal discovers Australian thoroughbred race meetings, harvests
// their race programs and reconciles each meeting with the identifier issued
// by an external form provider.
//
// This package contains domain types and interfaces following Ben Johnson's
// Standard Package Layout. Implementations live in subdirectories named
// after their primary dependency (e.g., sqlite/, postgres/, goquery/) or
// the concern they orchestrate (crawl/, program/, reconcile/).
package racecal
