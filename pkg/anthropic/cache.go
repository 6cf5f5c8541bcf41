package anthropic

// BuildCachedSystemBlocks constructs a system content block with a cache
// breakpoint. Lead extraction sends the same instruction block for every
// chunk of a conversation, so chunks after the first read it from the cache.
// An empty ttl uses the API default (5 minutes).
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
