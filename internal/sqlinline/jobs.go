package sqlinline

// Character job metadata. Image bytes never reach the database.

const QUpsertCharacterJob = `--sql fa66c574-f962-49f7-ad60-f3aa7b08a97e
insert into character_jobs (
    id, style, phase, failure_reason, failure_message,
    staging_url, staging_delete_url, staging_revoked, cleanup_warning,
    description, generated_image_url, delivery, created_at, updated_at
)
values (
    $1::uuid, $2::text, $3::text, nullif($4::text, ''), nullif($5::text, ''),
    $6::text, $7::text, $8::boolean, $9::text,
    $10::text, $11::text, $12::jsonb, $13::timestamptz, $14::timestamptz
)
on conflict (id) do update set
    style = excluded.style,
    phase = excluded.phase,
    failure_reason = excluded.failure_reason,
    failure_message = excluded.failure_message,
    staging_url = excluded.staging_url,
    staging_delete_url = excluded.staging_delete_url,
    staging_revoked = excluded.staging_revoked,
    cleanup_warning = excluded.cleanup_warning,
    description = excluded.description,
    generated_image_url = excluded.generated_image_url,
    delivery = excluded.delivery,
    updated_at = excluded.updated_at;
`

const QSelectCurrentCharacterJob = `--sql dae0bdd3-298f-4b3b-8791-4d06c90c4908
select id, style, phase, coalesce(failure_reason, ''), coalesce(failure_message, ''),
       staging_url, staging_delete_url, staging_revoked, cleanup_warning,
       description, generated_image_url, delivery, created_at, updated_at
from character_jobs
order by created_at desc
limit 1;
`

const QSelectCharacterJobByID = `--sql 8ae811a3-8319-49dc-81dc-0778f0c580ff
select id, style, phase, coalesce(failure_reason, ''), coalesce(failure_message, ''),
       staging_url, staging_delete_url, staging_revoked, cleanup_warning,
       description, generated_image_url, delivery, created_at, updated_at
from character_jobs
where id = $1::uuid;
`

const QSelectUnrevokedCharacterJobs = `--sql ad39e880-500f-4b8e-93af-7910f22fa095
select id, style, phase, coalesce(failure_reason, ''), coalesce(failure_message, ''),
       staging_url, staging_delete_url, staging_revoked, cleanup_warning,
       description, generated_image_url, delivery, created_at, updated_at
from character_jobs
where staging_delete_url <> ''
  and not staging_revoked
order by created_at asc
limit $1::int;
`

const QDeleteCharacterJob = `--sql 676aec3f-f26b-4666-8963-b8d8da7003d7
delete from character_jobs
where id = $1::uuid;
`
