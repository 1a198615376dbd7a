// Package tenants manages tenant (owner) records, plan tiers, and the
// document-count quotas those tiers impose.
//
// Plan tiers cap the number of active documents a tenant may own: free 1,
// pro 5, enterprise 10, unlimited uncapped. Voice training is available on
// enterprise and unlimited only. Quota checks run at document-creation time
// against a locked tenant row so concurrent uploads cannot both pass on a
// stale count; a cron reconciler corrects drift from out-of-band writes.
package tenants
