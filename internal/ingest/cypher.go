package ingest

// Upsert statements, one per staged batch. Every node and edge is merged
// by its natural key (fid, hash, address, channel id), so replaying a
// batch converges instead of duplicating. Each statement loads its rows
// from the staged CSV at $url and returns an affected count.

const mergeChannelsQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (channel:Channel:Farcaster {channelId: rows.id})
SET channel.name = rows.name,
    channel.url = rows.url,
    channel.description = rows.description,
    channel.lastIngestRun = $runId
RETURN COUNT(channel)
`

const mergeUsersQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (user:User:Farcaster {fid: rows.fid})
SET user.username = rows.username,
    user.displayName = rows.display_name,
    user.bio = rows.bio,
    user.powerBadge = rows.power_badge,
    user.verifiedAccounts = rows.verified_accounts,
    user.lastIngestRun = $runId
RETURN COUNT(user)
`

const mergeWalletsQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MATCH (user:User:Farcaster {fid: rows.fid})
MERGE (wallet:Wallet:Farcaster {address: rows.custody_address})
MERGE (user)-[r:ACCOUNT]->(wallet)
SET r.source = 'Farcaster',
    r.type = 'custody_address',
    r.lastIngestRun = $runId
RETURN COUNT(r)
`

const mergeCastsQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (cast:Cast:Farcaster {hash: rows.hash})
ON CREATE SET cast.replyCount = 0,
              cast.likeCount = 0,
              cast.recastCount = 0
SET cast.authorFid = rows.author_fid,
    cast.threadHash = rows.thread_hash,
    cast.parentHash = rows.parent_hash,
    cast.text = rows.text,
    cast.timestamp = rows.timestamp,
    cast.lastIngestRun = $runId
RETURN COUNT(cast)
`

const connectMembersQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MATCH (user:User:Farcaster {fid: rows.fid})
MATCH (channel:Channel:Farcaster {channelId: rows.channel})
MERGE (user)-[r:MEMBER]->(channel)
SET r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectModeratorsQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (user:User:Farcaster {fid: rows.fid})
WITH user, rows
MATCH (channel:Channel:Farcaster {channelId: rows.channel})
MERGE (user)-[r:MODERATOR]->(channel)
SET r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectChannelFollowersQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MATCH (user:User:Farcaster {fid: rows.fid})
MATCH (channel:Channel:Farcaster {channelId: rows.channel})
MERGE (user)-[r:FOLLOW]->(channel)
SET r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectUserFollowsQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (source:User:Farcaster {fid: rows.source})
MERGE (target:User:Farcaster {fid: rows.target})
MERGE (source)-[r:FOLLOW]->(target)
SET r.timestamp = rows.timestamp,
    r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectPostedQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MATCH (user:User:Farcaster {fid: rows.source})
MATCH (cast:Cast:Farcaster {hash: rows.target_hash})
MERGE (user)-[r:POSTED]->(cast)
SET r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectRepliesQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MATCH (child:Cast:Farcaster {hash: rows.source})
MATCH (parent:Cast:Farcaster {hash: rows.target})
MERGE (child)-[r:REPLIED]->(parent)
SET r.timestamp = rows.timestamp,
    r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectLikesQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (user:User:Farcaster {fid: rows.source})
WITH user, rows
MATCH (cast:Cast:Farcaster {hash: rows.target_hash})
MERGE (user)-[r:LIKED]->(cast)
SET r.timestamp = rows.timestamp,
    r.lastIngestRun = $runId
RETURN COUNT(r)
`

const connectRecastsQuery = `
LOAD CSV WITH HEADERS FROM $url AS rows
MERGE (user:User:Farcaster {fid: rows.source})
WITH user, rows
MATCH (cast:Cast:Farcaster {hash: rows.target_hash})
MERGE (user)-[r:RECASTED]->(cast)
SET r.timestamp = rows.timestamp,
    r.lastIngestRun = $runId
RETURN COUNT(r)
`

// recomputeCastCountersQuery refreshes the reply/like/recast counters of
// this run's casts from the edges actually present in the graph.
const recomputeCastCountersQuery = `
MATCH (cast:Cast:Farcaster)
WHERE cast.lastIngestRun = $runId
OPTIONAL MATCH (cast)<-[reply:REPLIED]-()
WITH cast, COUNT(reply) AS replies
OPTIONAL MATCH (cast)<-[like:LIKED]-()
WITH cast, replies, COUNT(like) AS likes
OPTIONAL MATCH (cast)<-[recast:RECASTED]-()
WITH cast, replies, likes, COUNT(recast) AS recasts
SET cast.replyCount = replies,
    cast.likeCount = likes,
    cast.recastCount = recasts
RETURN COUNT(cast)
`
