package pgvector

var VecToString = vecToString
