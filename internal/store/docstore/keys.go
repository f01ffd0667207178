package docstore

// Key layout. Every record lives under its owner so a prefix scan can never
// cross users:
//
//	users/{uid}/buckets/{bucketID}                   bucket document
//	users/{uid}/notes/{noteID}                       note document
//	users/{uid}/idx/primary/{bucketID}/{noteID}      primaryBucketId == bucketID
//	users/{uid}/idx/shared/{bucketID}/{noteID}       sharedBucketIds contains bucketID
//
// The idx keys have empty values and stand in for the equality and
// array-contains queries a document database would answer natively.
const (
	usersRoot     = "users/"
	bucketsDir    = "buckets/"
	notesDir      = "notes/"
	primaryIdxDir = "idx/primary/"
	sharedIdxDir  = "idx/shared/"
)

func userPrefix(uid string) string {
	return usersRoot + uid + "/"
}

func bucketsPrefix(uid string) []byte {
	return []byte(userPrefix(uid) + bucketsDir)
}

func bucketKey(uid, bucketID string) []byte {
	return []byte(userPrefix(uid) + bucketsDir + bucketID)
}

func notesPrefix(uid string) []byte {
	return []byte(userPrefix(uid) + notesDir)
}

func noteKey(uid, noteID string) []byte {
	return []byte(userPrefix(uid) + notesDir + noteID)
}

func primaryIdxPrefix(uid, bucketID string) []byte {
	return []byte(userPrefix(uid) + primaryIdxDir + bucketID + "/")
}

func primaryIdxKey(uid, bucketID, noteID string) []byte {
	return []byte(userPrefix(uid) + primaryIdxDir + bucketID + "/" + noteID)
}

func sharedIdxPrefix(uid, bucketID string) []byte {
	return []byte(userPrefix(uid) + sharedIdxDir + bucketID + "/")
}

func sharedIdxKey(uid, bucketID, noteID string) []byte {
	return []byte(userPrefix(uid) + sharedIdxDir + bucketID + "/" + noteID)
}
