package redis

import "github.com/redis/go-redis/v9"

const (
	scriptMissing  int64 = 0
	scriptOK       int64 = 1
	scriptUsed     int64 = 2
	scriptRevoked  int64 = 3
	scriptConflict int64 = 4
)

// KEYS: record, id index, family set, user set, expiry zset
// ARGV: hash, expires_at ms, field/value pairs...
var createLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 1 or redis.call("EXISTS", KEYS[2]) == 1 then
  return 4
end
redis.call("HSET", KEYS[1], unpack(ARGV, 3))
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("SADD", KEYS[4], ARGV[1])
redis.call("ZADD", KEYS[5], ARGV[2], ARGV[1])
return 1
`)

// KEYS: record
// ARGV: used_at ms
var markUsedLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HEXISTS", KEYS[1], "used_at") == 1 then
  return 2
end
if redis.call("HEXISTS", KEYS[1], "revoked_at") == 1 then
  return 3
end
redis.call("HSET", KEYS[1], "used_at", ARGV[1])
return 1
`)

// KEYS: record
// ARGV: revoked_at ms
var revokeLua = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
if redis.call("HEXISTS", KEYS[1], "used_at") == 1 or redis.call("HEXISTS", KEYS[1], "revoked_at") == 1 then
  return 3
end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1])
return 1
`)

// Revokes every live member of a family or user set, dropping members
// whose record was purged.
// KEYS: set
// ARGV: record key prefix, revoked_at ms
var revokeSetLua = redis.NewScript(`
local n = 0
for _, h in ipairs(redis.call("SMEMBERS", KEYS[1])) do
  local k = ARGV[1] .. h
  if redis.call("EXISTS", k) == 0 then
    redis.call("SREM", KEYS[1], h)
  elseif redis.call("HEXISTS", k, "used_at") == 0 and redis.call("HEXISTS", k, "revoked_at") == 0 then
    redis.call("HSET", k, "revoked_at", ARGV[2])
    n = n + 1
  end
end
return n
`)

// KEYS: expiry zset
// ARGV: now ms, key prefix
var purgeLua = redis.NewScript(`
local n = 0
for _, h in ipairs(redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])) do
  local k = ARGV[2] .. "rt:" .. h
  local f = redis.call("HMGET", k, "id", "family_id", "user_id")
  if f[1] then
    redis.call("DEL", k, ARGV[2] .. "rtid:" .. f[1])
    redis.call("SREM", ARGV[2] .. "fam:" .. f[2], h)
    redis.call("SREM", ARGV[2] .. "user:" .. f[3], h)
    n = n + 1
  end
  redis.call("ZREM", KEYS[1], h)
end
return n
`)
